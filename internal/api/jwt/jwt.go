package jwt

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type JWTClaim struct {
	UserId    int64  `json:"user_id"`
	SessionId string `json:"session_id"`
	jwt.RegisteredClaims
}

func GenerateJWT(userId int64, sessionId string) (token string, err error) {

	var claims = JWTClaim{
		userId,
		sessionId,
		jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	resToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	secret := os.Getenv("JWT_SECRET")
	signedToken, err := resToken.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

func ValidateToken(signedToken string) (userId int64, sessionId string, err error) {
	token, err := jwt.ParseWithClaims(signedToken, &JWTClaim{}, func(t *jwt.Token) (interface{}, error) { return []byte(os.Getenv("JWT_SECRET")), nil })
	if err != nil {
		return 0, "", err
	}
	claims, ok := token.Claims.(*JWTClaim)
	if !ok {
		return 0, "", errors.New("error parsing claims")
	}
	if claims.UserId == 0 || claims.SessionId == "" {
		return 0, "", errors.New("malformed data")
	}

	return claims.UserId, claims.SessionId, nil
}
