package domain

import (
	"time"
)

// UsedBefore reports whether any access was recorded on a day earlier than today.
func (c Consent) UsedBefore(today time.Time) bool {
	key := Day(today).Format(DateLayout)
	for day, count := range c.Usages {
		if count > 0 && day < key {
			return true
		}
	}
	return false
}

// ExpiredByDate reports whether today is past ValidUntil or ExpireDate.
func (c Consent) ExpiredByDate(today time.Time) bool {
	today = Day(today)
	for _, bound := range []time.Time{c.ValidUntil, c.ExpireDate} {
		if !bound.IsZero() && Day(bound).Before(today) {
			return true
		}
	}
	return false
}

// ConfirmationExpired reports whether a RECEIVED consent outlived the confirmation window.
func (c Consent) ConfirmationExpired(now time.Time, window time.Duration) bool {
	return c.Status == StatusReceived && window > 0 && now.Sub(c.CreatedAt) > window
}

// Refresh applies the expiry rules that hold at now and reports whether the
// consent changed. A one-off consent used on an earlier day, a consent past its
// validity dates and a RECEIVED consent never confirmed in time all become
// EXPIRED. Expiring an unconfirmed consent also fails its open authorisations.
func (c Consent) Refresh(now time.Time, notConfirmedExpiration time.Duration) (Consent, bool) {
	if c.IsFinalised() {
		return c, false
	}

	switch {
	case !c.RecurringIndicator && c.UsedBefore(now):
		return c.WithStatus(StatusExpired, now), true
	case c.ExpiredByDate(now):
		return c.WithStatus(StatusExpired, now), true
	case c.ConfirmationExpired(now, notConfirmedExpiration):
		out := c.WithStatus(StatusExpired, now)
		for i := range out.Authorisations {
			if !out.Authorisations[i].ScaStatus.IsFinalised() {
				out.Authorisations[i].ScaStatus = ScaFailed
				out.Authorisations[i].UpdatedAt = now
			}
		}
		return out, true
	}
	return c, false
}

// RecordUsage counts one access at now. The consent must be VALID and today's
// counter below FrequencyPerDay.
func (c Consent) RecordUsage(now time.Time) (Consent, error) {
	if c.Status != StatusValid {
		return c, ErrConsentNotValid
	}

	key := Day(now).Format(DateLayout)
	if c.FrequencyPerDay > 0 && c.Usages[key] >= c.FrequencyPerDay {
		return c, ErrAccessExceeded
	}

	out := c.Clone()
	if out.Usages == nil {
		out.Usages = make(map[string]int)
	}
	out.Usages[key]++
	out.LastActionDate = Day(now)
	return out, nil
}

// UsagesOn returns the number of accesses recorded on the day of t.
func (c Consent) UsagesOn(t time.Time) int {
	return c.Usages[Day(t).Format(DateLayout)]
}

// RequiredPsuCount is how many distinct PSUs must complete SCA.
func (c Consent) RequiredPsuCount() int {
	if c.IsMultilevel() {
		return len(c.PsuIDDataList)
	}
	return 1
}

// CompletedPsuCount counts the distinct PSUs with a completed authorisation of typ.
// On a multilevel consent only PSUs listed on the consent count.
func (c Consent) CompletedPsuCount(typ AuthorisationType) int {
	seen := make(map[string]struct{})
	for _, a := range c.Authorisations {
		if a.Type != typ || !a.ScaStatus.IsCompleted() {
			continue
		}
		if c.IsMultilevel() && !c.HasPsu(a.PsuData) {
			continue
		}
		seen[a.PsuData.Key()] = struct{}{}
	}
	return len(seen)
}

// EvaluateAuthorisations re-derives the consent or payment status from the
// authorisations of typ and reports whether it changed.
//
// With every required PSU completed a consent becomes VALID and a payment
// advances to ACTC. With some but not all completed the consent becomes
// PARTIALLY_AUTHORISED and a payment PATC. A completed cancellation sets CANC.
// A structurally invalid consent is REJECTED instead of becoming VALID.
func (c Consent) EvaluateAuthorisations(typ AuthorisationType, now time.Time) (Consent, bool) {
	if c.IsFinalised() {
		return c, false
	}

	completed := c.CompletedPsuCount(typ)
	if completed == 0 {
		return c, false
	}
	full := completed >= c.RequiredPsuCount()

	var status Status
	var txStatus TransactionStatus
	switch {
	case typ == AuthorisationPisCancellation:
		if !full {
			return c, false
		}
		status, txStatus = c.Status, TransactionCancelled
	case full && !c.StructurallyValid():
		status, txStatus = StatusRejected, TransactionRejected
	case full:
		status, txStatus = StatusValid, TransactionAcceptedTechnical
	default:
		status, txStatus = StatusPartiallyAuthorised, TransactionPartiallyAccepted
	}

	changed := status != c.Status
	if typ != AuthorisationConsent && c.Payment != nil && c.Payment.TransactionStatus != txStatus {
		changed = true
	}
	if !changed {
		return c, false
	}

	out := c.WithStatus(status, now)
	if typ != AuthorisationConsent && out.Payment != nil {
		out.Payment.TransactionStatus = txStatus
	}
	return out, true
}
