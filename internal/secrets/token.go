package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// GenerateOpaqueToken devuelve un secreto aleatorio en hex. Un fallo de
// entropia es fatal para el emisor: sin aleatoriedad no se emiten tokens.
func GenerateOpaqueToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = 32
	}
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken calcula el digest sha256 en hex; es la unica forma almacenada
// de refresh tokens, el secreto nunca es recuperable desde el store.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEquals compara secretos en tiempo constante. Longitudes
// distintas devuelven false de inmediato: el contrato solo cubre
// secretos de igual longitud.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
