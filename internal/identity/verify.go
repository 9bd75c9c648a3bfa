package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
)

const messageMagic = "\x18Bitcoin Signed Message:\n"

// VerifyMessage checks a bitcoin-style compact signature over message and
// returns the P2PKH address the signature recovers to. The caller decides
// whether that address matches the claimed signer.
func VerifyMessage(message, signature string) (string, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	header := sig[0]
	if header < 27 || header > 34 {
		return "", fmt.Errorf("invalid recovery header %d", header)
	}
	compressed := header >= 31

	// secp256k1 recovery wants [R || S || V] with V in {0..3}.
	recoverable := make([]byte, 65)
	copy(recoverable, sig[1:])
	recoverable[64] = (header - 27) & 3

	digest := messageDigest(message)
	pubKey, err := crypto.SigToPub(digest, recoverable)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}

	serialized := crypto.FromECDSAPub(pubKey)
	if compressed {
		serialized = crypto.CompressPubkey(pubKey)
	}

	addr := base58.CheckEncode(btcutil.Hash160(serialized), 0)
	return addr, nil
}

// messageDigest hashes a message the way bitcoin wallets sign it:
// double sha256 over the magic prefix and the varint-length payload.
func messageDigest(message string) []byte {
	var buf bytes.Buffer
	buf.WriteString(messageMagic)
	writeVarint(&buf, uint64(len(message)))
	buf.WriteString(message)

	first := sha256.Sum256(buf.Bytes())
	second := sha256.Sum256(first[:])
	return second[:]
}

func writeVarint(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		_ = binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		_ = binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(0xff)
		_ = binary.Write(buf, binary.LittleEndian, n)
	}
}
