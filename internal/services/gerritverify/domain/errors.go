package domain

// ErrorKind classifies why a run did not produce Verified(true)
type ErrorKind string

const (
	// ServerNotFound means no candidate base url answered like Gerrit
	ServerNotFound ErrorKind = "server_not_found"
	// AccountNotFound means the owner resolved to no account
	AccountNotFound ErrorKind = "account_not_found"
	// KeyNotRegistered is a definitive negative answer
	KeyNotRegistered ErrorKind = "key_not_registered"
	// CommunicationFailed covers HTTP errors and network failures; see StatusCode
	CommunicationFailed ErrorKind = "communication_failed"
	// Cancelled means the caller gave up
	Cancelled ErrorKind = "cancelled"
	// InvalidRequest means the request never reached the network
	InvalidRequest ErrorKind = "invalid_request"
)

var kindText = map[ErrorKind][2]string{
	ServerNotFound: {
		"Gerrit server not found",
		"Check --server or --github-org; the server must serve its REST API over HTTPS",
	},
	AccountNotFound: {
		"No Gerrit account found for the key owner",
		"Make sure the signer email is registered (preferred or secondary) on the Gerrit server",
	},
	KeyNotRegistered: {
		"Signing key is not registered to the Gerrit account",
		"Add the key in Gerrit under Settings > SSH Keys or GPG Keys",
	},
	CommunicationFailed: {
		"Could not communicate with the Gerrit server",
		"Check network access, and set GERRIT_USERNAME and GERRIT_PASSWORD if the server requires authentication",
	},
	Cancelled: {
		"Verification was cancelled",
		"Re-run the verification",
	},
	InvalidRequest: {
		"Invalid verification request",
		"Provide --owner, a key and a key type of ssh or gpg",
	},
}

// Message is the stable human readable text for the kind
func (k ErrorKind) Message() string { return kindText[k][0] }

// Hint suggests how to fix the failure
func (k ErrorKind) Hint() string { return kindText[k][1] }

// IsSystem is true for kinds that mean "could not answer"
// KeyNotRegistered is an answer, not a system failure
func (k ErrorKind) IsSystem() bool {
	return k != "" && k != KeyNotRegistered
}
