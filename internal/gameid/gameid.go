// Package gameid generates sortable identifiers for tables, hands and seed
// requests: a UUIDv7 encoded as a 26-character Crockford base32 string,
// carrying a short type prefix.
package gameid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Prefixes for the identifier kinds the coordinator mints.
const (
	PrefixTable = "tbl"
	PrefixHand  = "hand"
	PrefixSeed  = "seed"
)

// RandSource supplies randomness, injectable for deterministic tests.
type RandSource interface {
	Intn(n int) int
}

// Generator mints identifiers with configurable randomness.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil RandSource uses crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a bare 26-character identifier.
func (g *Generator) Generate() string {
	return encodeBase32(g.uuidv7())
}

// Table mints a table identifier.
func (g *Generator) Table() string {
	return PrefixTable + "_" + g.Generate()
}

// Hand mints a hand identifier.
func (g *Generator) Hand() string {
	return PrefixHand + "_" + g.Generate()
}

// SeedRequest mints a seed-request identifier.
func (g *Generator) SeedRequest() string {
	return PrefixSeed + "_" + g.Generate()
}

// uuidv7 builds a 128-bit UUIDv7: 48-bit millisecond timestamp, version and
// variant bits, the rest random. Millisecond ordering keeps ids sortable by
// creation time.
func (g *Generator) uuidv7() [16]byte {
	var uuid [16]byte

	now := time.Now().UnixMilli()
	uuid[0] = byte(now >> 40)
	uuid[1] = byte(now >> 32)
	uuid[2] = byte(now >> 24)
	uuid[3] = byte(now >> 16)
	uuid[4] = byte(now >> 8)
	uuid[5] = byte(now)

	if g.randSource != nil {
		for i := 6; i < 16; i++ {
			uuid[i] = byte(g.randSource.Intn(256))
		}
	} else {
		if _, err := rand.Read(uuid[6:]); err != nil {
			panic("failed to generate random bytes: " + err.Error())
		}
	}

	uuid[6] = (uuid[6] & 0x0f) | 0x70
	uuid[8] = (uuid[8] & 0x3f) | 0x80

	return uuid
}

// encodeBase32 encodes a 128-bit UUID as a 26-character base32 string,
// 5 bits per character; trailing bits beyond 128 are zero.
func encodeBase32(data [16]byte) string {
	result := make([]byte, 26)

	for i := 0; i < 26; i++ {
		bitOffset := i * 5
		byteIndex := bitOffset / 8
		bitIndex := bitOffset % 8

		var value uint8

		if byteIndex < 16 {
			if bitIndex <= 3 {
				value = (data[byteIndex] >> (3 - bitIndex)) & 0x1f
			} else {
				value = (data[byteIndex] << (bitIndex - 3)) & 0x1f
				if byteIndex+1 < 16 {
					value |= data[byteIndex+1] >> (11 - bitIndex)
				}
			}
		}

		result[i] = alphabet[value]
	}

	return string(result)
}

// Validate checks that id carries the expected prefix and a well-formed
// base32 body.
func Validate(id, prefix string) error {
	body, ok := strings.CutPrefix(id, prefix+"_")
	if !ok {
		return fmt.Errorf("identifier missing %q prefix: %s", prefix, id)
	}
	if len(body) != 26 {
		return fmt.Errorf("identifier body must be 26 characters, got %d", len(body))
	}
	for i, char := range body {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}
