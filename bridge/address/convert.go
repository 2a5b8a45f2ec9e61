package address

import (
	"fmt"

	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// InitiaPrefix is the bech32 prefix of the layer 1 and every rollup
const InitiaPrefix = "init"

// ConvertBech32Address re-encodes a bech32 address under a new prefix
func ConvertBech32Address(address string, targetPrefix string) (string, error) {
	_, data, err := bech32.Decode(address)
	if err != nil {
		return "", fmt.Errorf("failed to decode address: %w", err)
	}

	converted, err := bech32.Encode(targetPrefix, data)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	return converted, nil
}

// IsBech32 reports whether s decodes as bech32
func IsBech32(s string) bool {
	_, _, err := bech32.Decode(s)
	return err == nil
}

// HexToBech32 encodes the bytes of a hex address under prefix
func HexToBech32(hexAddress, prefix string) (string, error) {
	if !common.IsHexAddress(hexAddress) {
		return "", fmt.Errorf("invalid hex address: %s", hexAddress)
	}
	return bytesToBech32(common.HexToAddress(hexAddress).Bytes(), prefix)
}

// Bech32ToHex returns the checksummed hex form of a 20 byte bech32 address
func Bech32ToHex(address string) (string, error) {
	_, data, err := bech32.Decode(address)
	if err != nil {
		return "", fmt.Errorf("failed to decode address: %w", err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	if len(raw) != common.AddressLength {
		return "", fmt.Errorf("address %s is %d bytes, only 20 byte accounts map to evm", address, len(raw))
	}
	return common.BytesToAddress(raw).Hex(), nil
}

// PubKeyToBech32 derives the secp256k1 account address, ripemd160(sha256(compressed key)),
// under prefix. Both compressed (33 byte) and uncompressed (65 byte) keys are accepted.
func PubKeyToBech32(pubKey []byte, prefix string) (string, error) {
	compressed, err := compressPubKey(pubKey)
	if err != nil {
		return "", err
	}
	return bytesToBech32(btcutil.Hash160(compressed), prefix)
}

func compressPubKey(pubKey []byte) ([]byte, error) {
	switch len(pubKey) {
	case 33:
		if _, err := ethcrypto.DecompressPubkey(pubKey); err != nil {
			return nil, fmt.Errorf("invalid compressed public key: %w", err)
		}
		return pubKey, nil
	case 65:
		key, err := ethcrypto.UnmarshalPubkey(pubKey)
		if err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		return ethcrypto.CompressPubkey(key), nil
	}
	return nil, fmt.Errorf("unexpected public key length %d", len(pubKey))
}

func bytesToBech32(raw []byte, prefix string) (string, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	out, err := bech32.Encode(prefix, conv)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	return out, nil
}
