package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const identityContextKey = "identity"

// Roles issued by the identity provider.
const (
	RoleCustomer = "customer"
	RoleMerchant = "merchant"
)

var errMissingSubject = errors.New("token has no actor id for its role")

// Claims is the JWT payload minted by the identity provider.
type Claims struct {
	Role       string `json:"role"`
	CustomerID string `json:"customer_id,omitempty"`
	MerchantID string `json:"merchant_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller of a request.
type Identity struct {
	UserID     string
	Role       string
	CustomerID uuid.UUID
	MerchantID uuid.UUID
}

// Authenticate verifies the bearer token on every request and stores the
// resulting Identity in the request locals. issuer is checked only when set.
func Authenticate(secret, issuer string) fiber.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return unauthorized(c, "invalid authorization header")
		}

		claims := &Claims{}
		token, err := parser.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return unauthorized(c, "invalid token")
		}

		id, err := claims.identity()
		if err != nil {
			return unauthorized(c, "invalid token")
		}

		SetIdentity(c, id)
		return c.Next()
	}
}

// RequireRole rejects callers whose verified role differs from role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return unauthorized(c, "missing identity")
		}
		if id.Role != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "requires " + role + " role",
				"code":  "forbidden",
			})
		}
		return c.Next()
	}
}

// SetIdentity stores id as the caller of the current request.
func SetIdentity(c *fiber.Ctx, id Identity) {
	c.Locals(identityContextKey, id)
}

// IdentityFrom extracts the authenticated caller from context.
func IdentityFrom(c *fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(identityContextKey).(Identity)
	return id, ok
}

func (cl *Claims) identity() (Identity, error) {
	id := Identity{UserID: cl.Subject, Role: cl.Role}
	var err error
	switch cl.Role {
	case RoleCustomer:
		id.CustomerID, err = uuid.Parse(cl.CustomerID)
	case RoleMerchant:
		id.MerchantID, err = uuid.Parse(cl.MerchantID)
	default:
		return Identity{}, errors.New("unknown role " + cl.Role)
	}
	if err != nil {
		return Identity{}, errMissingSubject
	}
	return id, nil
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg, "code": "unauthorized"})
}
