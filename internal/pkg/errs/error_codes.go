/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrInvalidID indicates that a path or body identifier is not a well-formed id.
	ErrInvalidID = 1008

	// ErrMissingQuery indicates that a required search query was empty.
	ErrMissingQuery = 1009
)

// 2xxx: Conversation and Message Business Logic Errors
const (
	// ErrSelfConversation indicates an attempt to open a conversation with oneself.
	ErrSelfConversation = 2101

	// ErrNotParticipant indicates the caller is not a member of the conversation,
	// or the conversation does not exist. The two cases are deliberately indistinguishable.
	ErrNotParticipant = 2102

	// ErrInvalidRoomID indicates a malformed room identifier.
	ErrInvalidRoomID = 2103

	// ErrEmptyContent indicates a message with blank content.
	ErrEmptyContent = 2201

	// ErrMessageContentTooLong indicates that the user's message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrInvalidTarget indicates a message naming both or neither of conversation and room.
	ErrInvalidTarget = 2203

	// ErrFileSizeTooLarge indicates an avatar upload above the size cap.
	ErrFileSizeTooLarge = 2301

	// ErrFileTypeInvalid indicates an avatar whose name or MIME type is not an allowed image.
	ErrFileTypeInvalid = 2302

	// ErrAvatarKeyInvalid indicates a profile update naming an object the caller does not own.
	ErrAvatarKeyInvalid = 2303
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates a password mismatch on login.
	ErrInvalidCredentials = 3002

	// ErrUserNotFound indicates that no account matches the lookup.
	ErrUserNotFound = 3003

	// ErrEmailTaken indicates a registration with an email already in use.
	ErrEmailTaken = 3004

	// ErrUsernameTaken indicates a registration with a username already in use.
	ErrUsernameTaken = 3005

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = 3006

	// ErrInvalidUsername indicates a username outside the allowed pattern.
	ErrInvalidUsername = 3007

	// ErrInvalidPassword indicates a password outside the allowed length.
	ErrInvalidPassword = 3008

	// ErrMissingRegistrationFields indicates one of username, email or password was empty.
	ErrMissingRegistrationFields = 3009
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageUnavailable indicates that object storage is not configured.
	ErrStorageUnavailable = 5001

	// ErrFileStorageFailed indicates the object storage call failed.
	ErrFileStorageFailed = 5002

	// ErrDatabaseUnavailable indicates the database did not answer a health check.
	ErrDatabaseUnavailable = 5003
)
