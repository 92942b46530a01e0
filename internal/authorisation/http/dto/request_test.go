package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

func TestStartAuthorisationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request StartAuthorisationRequest
		wantErr bool
	}{
		{name: "empty request", request: StartAuthorisationRequest{}},
		{name: "embedded", request: StartAuthorisationRequest{ScaApproach: "EMBEDDED"}},
		{name: "unknown approach", request: StartAuthorisationRequest{ScaApproach: "OAUTH"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStartAuthorisationRequest_ToInput(t *testing.T) {
	request := StartAuthorisationRequest{
		PsuData:     &PsuData{PsuID: "psu-1", PsuCorporateID: "corp"},
		ScaApproach: "DECOUPLED",
	}

	input := request.ToInput()

	assert.Equal(t, consentDomain.PsuData{ID: "psu-1", CorporateID: "corp"}, input.PsuData)
	assert.Equal(t, consentDomain.ScaApproachDecoupled, input.ScaApproach)
	assert.True(t, (&StartAuthorisationRequest{}).ToInput().PsuData.IsEmpty())
}

func TestUpdateAuthorisationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request UpdateAuthorisationRequest
		wantErr bool
	}{
		{name: "identification", request: UpdateAuthorisationRequest{PsuData: &PsuData{PsuID: "psu-1"}}},
		{name: "password only", request: UpdateAuthorisationRequest{Password: "secret"}},
		{name: "method selection", request: UpdateAuthorisationRequest{AuthenticationMethodID: "sms"}},
		{name: "otp", request: UpdateAuthorisationRequest{ScaAuthenticationData: "123456"}},
		{name: "empty", request: UpdateAuthorisationRequest{}, wantErr: true},
		{name: "padded otp", request: UpdateAuthorisationRequest{ScaAuthenticationData: " 123456"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfirmationRequest_Validate(t *testing.T) {
	assert.NoError(t, (&ConfirmationRequest{ConfirmationCode: "abc"}).Validate())
	assert.Error(t, (&ConfirmationRequest{}).Validate())
	assert.Error(t, (&ConfirmationRequest{ConfirmationCode: "   "}).Validate())
}

func TestAspspStatusRequest_Validate(t *testing.T) {
	assert.NoError(t, (&AspspStatusRequest{ScaStatus: "FINALISED"}).Validate())
	assert.Error(t, (&AspspStatusRequest{ScaStatus: "DONE"}).Validate())
	assert.Error(t, (&AspspStatusRequest{}).Validate())
}
