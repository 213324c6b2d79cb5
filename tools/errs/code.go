package errs

const (
	ServerInternalError = 500

	AuthenticationError = 1001 // bad, missing or expired credential
	AuthorizationError  = 1002 // operation needs an identity that is not bound
	DispatchError       = 1003 // outbound publish could not deliver
	RecordNotFoundError = 1004
	ArgsError           = 1005
	DuplicateKeyError   = 1006
	ForbiddenError      = 1007 // identity bound but not allowed to act on the record
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "ServerInternalError")

	ErrAuthentication = NewCodeError(AuthenticationError, "AuthenticationFailure")
	ErrAuthorization  = NewCodeError(AuthorizationError, "AuthorizationFailure")
	ErrDispatch       = NewCodeError(DispatchError, "DispatchFailure")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "RecordNotFound")
	ErrArgs           = NewCodeError(ArgsError, "ArgsError")
	ErrDuplicateKey   = NewCodeError(DuplicateKeyError, "DuplicateKey")
	ErrForbidden      = NewCodeError(ForbiddenError, "Forbidden")
)

func init() {
	// a forbidden action is an authorization failure too
	_ = DefaultCodeRelation.Add(AuthorizationError, ForbiddenError)
}
