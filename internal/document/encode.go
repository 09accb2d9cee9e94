package document

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
)

// Encoded is the wire form of a canonical document: the exact payload bytes,
// their base64 encoding, and the SHA-256 of those bytes in hex.
type Encoded struct {
	Payload       []byte
	PayloadBase64 string
	HashHex       string
}

// Encode serializes the document and computes its content hash.
//
// Serialization goes through encoding/json over structs only, so key order
// follows field declaration order and re-encoding the identical logical
// document always yields byte-identical output. The hash is computed over the
// exact payload bytes and is independently re-verifiable by the authority.
func Encode(doc *Document) (Encoded, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return Encoded{}, err
	}

	sum := sha256.Sum256(payload)
	return Encoded{
		Payload:       payload,
		PayloadBase64: base64.StdEncoding.EncodeToString(payload),
		HashHex:       hex.EncodeToString(sum[:]),
	}, nil
}
