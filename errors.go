package hatsdeploy

import "errors"

// Sentinel errors
var (
	ErrMissingCredential = errors.New("hatsdeploy: please set PRIVATE_KEY in your environment or .env file")
	ErrInvalidCredential = errors.New("hatsdeploy: PRIVATE_KEY is not a valid secp256k1 key")

	ErrInvalidParams    = errors.New("hatsdeploy: invalid deployment parameters")
	ErrArtifactNotFound = errors.New("hatsdeploy: artifact not found")
	ErrEmptyBytecode    = errors.New("hatsdeploy: artifact has empty bytecode")
	ErrMethodNotFound   = errors.New("hatsdeploy: method not found in ABI")
	ErrZkSyncArtifact   = errors.New("hatsdeploy: artifact holds zkSync EraVM bytecode, not EVM bytecode")

	ErrChainIDMismatch = errors.New("hatsdeploy: chain ID mismatch")
	ErrTxReverted      = errors.New("hatsdeploy: transaction reverted")
	ErrAddressNotFound = errors.New("hatsdeploy: deployed address not found in receipt")
	ErrNoCodeAtAddress = errors.New("hatsdeploy: no code at address")
)
