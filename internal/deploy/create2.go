package deploy

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// InitCode concatenates creation bytecode and ABI-encoded constructor args.
func InitCode(bytecode, constructorArgs []byte) []byte {
	initCode := make([]byte, 0, len(bytecode)+len(constructorArgs))
	initCode = append(initCode, bytecode...)
	return append(initCode, constructorArgs...)
}

// InitCodeHash is keccak256(initCode).
func InitCodeHash(initCode []byte) common.Hash {
	return crypto.Keccak256Hash(initCode)
}

// Create2Address is the address deployer lands initCode on under salt.
func Create2Address(deployer common.Address, salt common.Hash, initCode []byte) common.Address {
	return crypto.CreateAddress2(deployer, salt, InitCodeHash(initCode).Bytes())
}

// Create2Calldata is the calldata the deterministic deployment proxy expects:
// the 32-byte salt followed by the initcode.
func Create2Calldata(salt common.Hash, initCode []byte) []byte {
	data := make([]byte, 0, common.HashLength+len(initCode))
	data = append(data, salt.Bytes()...)
	return append(data, initCode...)
}
