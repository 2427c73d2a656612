package auth

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"player-ticket-gateway/internal/apperr"
)

// Digest selects the hash used for request signatures.
type Digest string

const (
	DigestSHA256 Digest = "sha256"
	DigestMD5    Digest = "md5"
	DigestBLAKE3 Digest = "blake3"
)

// ParseDigest accepts the configuration spelling of a digest name.
func ParseDigest(s string) (Digest, error) {
	switch d := Digest(strings.ToLower(strings.TrimSpace(s))); d {
	case DigestSHA256, DigestMD5, DigestBLAKE3:
		return d, nil
	case "":
		return DigestSHA256, nil
	default:
		return "", fmt.Errorf("unsupported signature digest %q", s)
	}
}

// SignedRequest is a parsed signature credential.
type SignedRequest struct {
	GameID      string
	UID         string
	AreaID      string
	TimestampMs int64
	Nonce       string
	Signature   string
	PlayerName  string
}

// Sign computes the lowercase hex signature game servers attach to requests. The canonical string
// is gameId|uid|areaId|ts|nonce|secret.
func Sign(d Digest, gameID, uid, areaID string, tsMs int64, nonce, secret string) string {
	canonical := strings.Join([]string{gameID, uid, areaID, strconv.FormatInt(tsMs, 10), nonce, secret}, "|")
	switch d {
	case DigestMD5:
		sum := md5.Sum([]byte(canonical))
		return hex.EncodeToString(sum[:])
	case DigestBLAKE3:
		sum := blake3.Sum256([]byte(canonical))
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256([]byte(canonical))
		return hex.EncodeToString(sum[:])
	}
}

// SignatureVerifier checks timestamp freshness, the signature and nonce uniqueness, in that order.
// The nonce is only consumed by requests that carry a valid signature.
type SignatureVerifier struct {
	secrets SecretRegistry
	nonces  NonceLedger
	digest  Digest
	window  atomic.Int64
}

func NewSignatureVerifier(secrets SecretRegistry, nonces NonceLedger, digest Digest, window time.Duration) *SignatureVerifier {
	v := &SignatureVerifier{secrets: secrets, nonces: nonces, digest: digest}
	v.SetWindow(window)
	return v
}

// SetWindow changes the replay window for subsequent requests.
func (v *SignatureVerifier) SetWindow(window time.Duration) {
	v.window.Store(int64(window))
}

// Window returns the current replay window.
func (v *SignatureVerifier) Window() time.Duration {
	return time.Duration(v.window.Load())
}

func (v *SignatureVerifier) Verify(ctx context.Context, req SignedRequest, now time.Time) (PlayerIdentity, error) {
	window := v.Window()
	nowMs := now.UnixMilli()
	// compare against bounds; subtracting an arbitrary ts from nowMs can overflow
	if lower, upper := nowMs-window.Milliseconds(), nowMs+window.Milliseconds(); req.TimestampMs < lower || req.TimestampMs > upper {
		return PlayerIdentity{}, apperr.Newf(apperr.TimestampExpired,
			"timestamp %d is outside [%d, %d], window is %s", req.TimestampMs, lower, upper, window)
	}

	secret, err := v.secrets.SecretFor(ctx, req.GameID)
	switch {
	case errors.Is(err, ErrUnknownGame), errors.Is(err, ErrGameDisabled):
		return PlayerIdentity{}, apperr.Wrap(apperr.SignatureMismatch, "signature does not match", err)
	case err != nil:
		return PlayerIdentity{}, apperr.Wrap(apperr.Internal, "load game secret", err)
	}

	want := Sign(v.digest, req.GameID, req.UID, req.AreaID, req.TimestampMs, req.Nonce, secret)
	got := strings.ToLower(req.Signature)
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return PlayerIdentity{}, apperr.New(apperr.SignatureMismatch, "signature does not match")
	}

	fresh, err := v.nonces.Record(ctx, req.GameID, req.Nonce, now)
	if err != nil {
		return PlayerIdentity{}, apperr.Wrap(apperr.Internal, "record nonce", err)
	}
	if !fresh {
		return PlayerIdentity{}, apperr.New(apperr.ReplayDetected, "nonce already used")
	}

	return PlayerIdentity{
		GameID:     req.GameID,
		AreaID:     req.AreaID,
		UID:        req.UID,
		PlayerName: req.PlayerName,
		AuthMethod: MethodSignature,
	}, nil
}

// ParseSigned validates field presence and the timestamp format of raw signature credentials.
func ParseSigned(c SignatureCredentials, playerName string) (SignedRequest, error) {
	if missing := c.missing(); len(missing) > 0 {
		return SignedRequest{}, missingFieldsError("signed request", missing)
	}
	ts, err := strconv.ParseInt(c.Timestamp, 10, 64)
	if err != nil {
		return SignedRequest{}, apperr.Wrap(apperr.ParseFailed, "ts must be a unix millisecond timestamp", err)
	}
	return SignedRequest{
		GameID:      c.GameID,
		UID:         c.UID,
		AreaID:      c.AreaID,
		TimestampMs: ts,
		Nonce:       c.Nonce,
		Signature:   c.Sign,
		PlayerName:  strings.TrimSpace(playerName),
	}, nil
}
