package auth

import (
	"strings"

	"github.com/samber/lo"

	"player-ticket-gateway/internal/apperr"
)

// ConnectRequest is the raw credential-bearing part of a connect request. Field names follow the
// wire format used by game clients and game servers.
type ConnectRequest struct {
	SessionToken string `json:"sessionToken" query:"sessionToken" form:"sessionToken"`
	Token        string `json:"token" query:"token" form:"token"`
	GameID       string `json:"gameid" query:"gameid" form:"gameid"`
	UID          string `json:"uid" query:"uid" form:"uid"`
	AreaID       string `json:"areaid" query:"areaid" form:"areaid"`
	Timestamp    string `json:"ts" query:"ts" form:"ts"`
	Nonce        string `json:"nonce" query:"nonce" form:"nonce"`
	Sign         string `json:"sign" query:"sign" form:"sign"`
	PlayerName   string `json:"playerName" query:"playerName" form:"playerName"`
}

// Credentials is one of SessionCredentials, GameTokenCredentials or SignatureCredentials.
type Credentials interface {
	Method() AuthMethod
	isCredentials()
}

// SessionCredentials carries a session token previously issued by this gateway.
type SessionCredentials struct {
	Token string
}

// GameTokenCredentials carries an identity JWT minted by the game server.
type GameTokenCredentials struct {
	Token string
}

// SignatureCredentials carries the fields of a signed request, still unparsed.
type SignatureCredentials struct {
	GameID    string
	UID       string
	AreaID    string
	Timestamp string
	Nonce     string
	Sign      string
}

func (SessionCredentials) Method() AuthMethod   { return MethodSessionToken }
func (GameTokenCredentials) Method() AuthMethod { return MethodJWT }
func (SignatureCredentials) Method() AuthMethod { return MethodSignature }

func (SessionCredentials) isCredentials()   {}
func (GameTokenCredentials) isCredentials() {}
func (SignatureCredentials) isCredentials() {}

// Classify picks the credential variant by priority: session token, then game JWT, then signature
// fields. Lower-priority fields are ignored once a higher one is present.
func Classify(req ConnectRequest) (Credentials, error) {
	if tok := strings.TrimSpace(req.SessionToken); tok != "" {
		return SessionCredentials{Token: tok}, nil
	}
	if tok := strings.TrimSpace(req.Token); tok != "" {
		return GameTokenCredentials{Token: tok}, nil
	}
	sig := SignatureCredentials{
		GameID:    strings.TrimSpace(req.GameID),
		UID:       strings.TrimSpace(req.UID),
		AreaID:    strings.TrimSpace(req.AreaID),
		Timestamp: strings.TrimSpace(req.Timestamp),
		Nonce:     strings.TrimSpace(req.Nonce),
		Sign:      strings.TrimSpace(req.Sign),
	}
	if sig == (SignatureCredentials{}) {
		return nil, apperr.New(apperr.NoCredentials, "no sessionToken, token or signature fields supplied")
	}
	return sig, nil
}

// missing returns the names of the required signature fields that are empty, in wire order.
func (s SignatureCredentials) missing() []string {
	required := []lo.Tuple2[string, string]{
		lo.T2("gameid", s.GameID),
		lo.T2("uid", s.UID),
		lo.T2("ts", s.Timestamp),
		lo.T2("nonce", s.Nonce),
		lo.T2("sign", s.Sign),
	}
	return lo.FilterMap(required, func(f lo.Tuple2[string, string], _ int) (string, bool) {
		return f.A, f.B == ""
	})
}

func missingFieldsError(what string, fields []string) error {
	return apperr.Newf(apperr.MissingFields, "%s missing required fields: %s", what, strings.Join(fields, ", ")).
		WithDetails(fields)
}

// MethodOf names the variant Classify would pick, or "none" when no credential is present.
func MethodOf(req ConnectRequest) AuthMethod {
	creds, err := Classify(req)
	if err != nil {
		return "none"
	}
	return creds.Method()
}
