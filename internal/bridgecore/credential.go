package bridgecore

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Credential holds a wallet's key material and derived address. It does not
// talk to the chain.
type Credential struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewCredential(pkHex string) (*Credential, error) {
	prv, err := hexToECDSAPriv(pkHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Credential{key: prv, address: gethcrypto.PubkeyToAddress(prv.PublicKey)}, nil
}

func (c *Credential) Address() common.Address { return c.address }
