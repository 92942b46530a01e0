package domain

// Zero overwrites key material and passwords once they are no longer needed.
func Zero(b []byte) {
	clear(b)
}
