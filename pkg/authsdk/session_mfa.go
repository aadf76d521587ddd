package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Enroll registers a new, unverified factor and returns its shared secret.
func (s *Session) Enroll(ctx context.Context, req EnrollFactorRequest) (*EnrollFactorResponse, error) {
	if req.FactorType == "" {
		req.FactorType = FactorTypeTOTP
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/factors", req)
	if err != nil {
		return nil, err
	}

	var enrollResp EnrollFactorResponse
	if err := decodeJSON(resp, &enrollResp); err != nil {
		return nil, err
	}
	return &enrollResp, nil
}

// Challenge opens a verification challenge for a factor.
func (s *Session) Challenge(ctx context.Context, factorID string) (*ChallengeResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, factorPath(factorID, "/challenge"), nil)
	if err != nil {
		return nil, err
	}

	var challenge ChallengeResponse
	if err := decodeJSON(resp, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// Verify submits a code against a challenge. On success the provider
// issues a stepped-up token pair which replaces the session's tokens.
func (s *Session) Verify(ctx context.Context, factorID, challengeID, code string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, factorPath(factorID, "/verify"),
		VerifyFactorRequest{ChallengeID: challengeID, Code: code})
	if err != nil {
		return err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp); err != nil {
		return err
	}

	s.mu.Lock()
	s.applyLocked(&tokenResp)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.client.persist(ctx, snap)
	return nil
}

// ChallengeAndVerify runs Challenge and Verify back to back.
func (s *Session) ChallengeAndVerify(ctx context.Context, factorID, code string) error {
	challenge, err := s.Challenge(ctx, factorID)
	if err != nil {
		return err
	}
	return s.Verify(ctx, factorID, challenge.ID, code)
}

// Unenroll deletes a factor.
func (s *Session) Unenroll(ctx context.Context, factorID string) (*UnenrollResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, factorPath(factorID, ""), nil)
	if err != nil {
		return nil, err
	}

	var out UnenrollResponse
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFactors returns every factor on the user, verified or not.
func (s *Session) ListFactors(ctx context.Context) ([]Factor, error) {
	user, err := s.GetUser(ctx)
	if err != nil {
		return nil, err
	}
	return user.Factors, nil
}

func factorPath(factorID, suffix string) string {
	return "/factors/" + url.PathEscape(factorID) + suffix
}
