package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"PMentor/module/mentor/model"
	"PMentor/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Options 控制签名与TTL等参数。
type Options struct {
	Secret []byte        // HMAC 密钥（生产用ENV/KMS）
	Alg    string        // HS256/HS384/HS512（默认 HS512）
	TTL    time.Duration // 令牌有效期（默认 24h）
	Issuer string        // 非空时签发与校验都带 iss
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS512", TTL: 24 * time.Hour}
}

// Claims carries the principal: sub is the login email, id the user uuid.
type Claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwtlib.RegisteredClaims
}

// Verifier turns a bearer credential into an Identity.
type Verifier interface {
	Verify(token string) (model.Identity, error)
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Generate signs a token for id. Used by tooling and tests; issuance proper
// belongs to the account service.
func Generate(opts Options, id model.Identity) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := Claims{
		ID:   id.UserID,
		Role: string(id.Role),
		Name: id.DisplayName,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   id.Email,
			Issuer:    opts.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}

	signed, err := jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

type JWTVerifier struct {
	opts   Options
	parser *jwtlib.Parser
}

func NewVerifier(opts Options) (*JWTVerifier, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	if len(opts.Secret) == 0 {
		return nil, errs.ErrArgs.WrapMsg("jwt secret is empty")
	}
	parserOpts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{method.Alg()}),
		jwtlib.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwtlib.WithIssuer(opts.Issuer))
	}
	return &JWTVerifier{opts: opts, parser: jwtlib.NewParser(parserOpts...)}, nil
}

// Verify checks signature, expiry and the principal claims. Every failure is
// an ErrAuthentication coded error.
func (v *JWTVerifier) Verify(token string) (model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Identity{}, errs.ErrAuthentication.WrapMsg("empty token")
	}
	var claims Claims
	parsed, err := v.parser.ParseWithClaims(token, &claims, func(t *jwtlib.Token) (interface{}, error) {
		// 仅允许 HMAC 家族
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return v.opts.Secret, nil
	})
	if err != nil {
		return model.Identity{}, errs.ErrAuthentication.WrapMsg("invalid token", "err", err)
	}
	if !parsed.Valid {
		return model.Identity{}, errs.ErrAuthentication.WrapMsg("invalid token")
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return model.Identity{}, errs.ErrAuthentication.WrapMsg("id claim is not a uuid", "id", claims.ID)
	}
	role, ok := model.ParseRole(claims.Role)
	if !ok {
		return model.Identity{}, errs.ErrAuthentication.WrapMsg("unknown role claim", "role", claims.Role)
	}
	return model.Identity{
		UserID:      claims.ID,
		Email:       claims.Subject,
		DisplayName: claims.Name,
		Role:        role,
	}, nil
}

// BearerToken pulls the credential out of an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("bearer "):])
	return token, token != ""
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "", "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
