package builtin

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/getmockd/mockresolver/pkg/template"
)

const defaultTokenTTL = 3600

func tokenFuncs(now func() time.Time) []template.FunctionSpec {
	return []template.FunctionSpec{
		spec("jwt", 2, 3, template.KindVolatile, funcJWT(now),
			"HS256-signed JWT with sub, iat, exp and jti claims.", `${jwt(secret, var:userId, 600)}`,
			param("secret", "string", "HMAC key"), param("subject", "string", "sub claim"),
			optional("ttl", "int", "lifetime in seconds, 3600 by default")),
	}
}

func funcJWT(now func() time.Time) template.Func {
	return func(ctx *template.Context, args []template.Value) (template.Value, error) {
		secret := str(args[0])
		if secret == "" {
			return nil, errors.New("jwt secret is empty")
		}
		ttl, err := toInt("ttl", optArg(args, 2, defaultTokenTTL))
		if err != nil {
			return nil, err
		}
		if ttl <= 0 {
			return nil, errors.New("jwt ttl must be positive")
		}
		issued := now()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": str(args[1]),
			"iat": issued.Unix(),
			"exp": issued.Add(time.Duration(ttl) * time.Second).Unix(),
			"jti": ctx.UUID(),
		})
		return token.SignedString([]byte(secret))
	}
}
