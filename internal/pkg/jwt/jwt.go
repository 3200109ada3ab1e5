package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var ErrInvalidClaims = errors.New("token claims do not describe an actor")

type Service interface {
	// GenerateAccessToken mints a token for actor; used by the CLI and tests,
	// interactive logins are issued by the identity service.
	GenerateAccessToken(actor approval.Actor) (token string, expiresAt int64, err error)
	GenerateSSEToken(userID string) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (userID string, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) GenerateAccessToken(actor approval.Actor) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	claims := map[string]interface{}{
		"user_id":     actor.UserID,
		"employee_id": returnValueOrNil(actor.EmployeeID),
		"role":        string(actor.Role),
		"type":        "access",
		"exp":         expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

func returnValueOrNil(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// ActorFromClaims builds the actor an access token speaks for.
func ActorFromClaims(claims map[string]interface{}) (approval.Actor, error) {
	userID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	if userID == "" || role == "" {
		return approval.Actor{}, ErrInvalidClaims
	}

	actor := approval.Actor{UserID: userID, Role: approval.Role(role)}
	if employeeID, ok := claims["employee_id"].(string); ok {
		actor.EmployeeID = employeeID
	}

	switch actor.Role {
	case approval.RoleEmployee, approval.RoleManager, approval.RoleHR, approval.RoleOwner, approval.RoleSystem:
	default:
		return approval.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidClaims, role)
	}
	return actor, nil
}

// GenerateSSEToken generates a short-lived token for SSE connections
func (j *JWTService) GenerateSSEToken(userID string) (token string, expiresIn int, err error) {
	// SSE tokens are short-lived (5 minutes)
	expiresIn = 300
	expiresAt := time.Now().Add(5 * time.Minute).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id": userID,
		"type":    "sse",
		"exp":     expiresAt,
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, expiresIn, nil
}

// ValidateSSEToken validates an SSE token and returns the user ID
func (j *JWTService) ValidateSSEToken(tokenString string) (userID string, err error) {
	token, err := j.tokenAuth.Decode(tokenString)
	if err != nil {
		return "", err
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != "sse" {
		return "", jwt.ErrInvalidJWT()
	}

	userIDVal, ok := token.Get("user_id")
	if !ok {
		return "", jwt.ErrInvalidJWT()
	}

	userID, ok = userIDVal.(string)
	if !ok {
		return "", jwt.ErrInvalidJWT()
	}

	return userID, nil
}
