/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Malformed JSON body.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrInvalidID:            {Code: ErrInvalidID, Message: "Invalid %s ID.", Status: http.StatusBadRequest},
	ErrMissingQuery:         {Code: ErrMissingQuery, Message: "Search query is required.", Status: http.StatusBadRequest},

	// 2xxx: Conversation and Message Business Logic Errors
	ErrSelfConversation:      {Code: ErrSelfConversation, Message: "Cannot create a conversation with yourself.", Status: http.StatusBadRequest},
	ErrNotParticipant:        {Code: ErrNotParticipant, Message: "Conversation not found or you are not a participant.", Status: http.StatusForbidden},
	ErrInvalidRoomID:         {Code: ErrInvalidRoomID, Message: "Invalid room ID.", Status: http.StatusBadRequest},
	ErrEmptyContent:          {Code: ErrEmptyContent, Message: "Message content is required.", Status: http.StatusBadRequest},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrInvalidTarget:         {Code: ErrInvalidTarget, Message: "Message must belong to exactly one of a conversation or a room.", Status: http.StatusBadRequest},
	ErrFileSizeTooLarge:      {Code: ErrFileSizeTooLarge, Message: "File is too large.", Status: http.StatusBadRequest},
	ErrFileTypeInvalid:       {Code: ErrFileTypeInvalid, Message: "Unsupported file type.", Status: http.StatusBadRequest},
	ErrAvatarKeyInvalid:      {Code: ErrAvatarKeyInvalid, Message: "Invalid avatar.", Status: http.StatusBadRequest},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:              {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials:        {Code: ErrInvalidCredentials, Message: "Invalid credentials.", Status: http.StatusUnauthorized},
	ErrUserNotFound:              {Code: ErrUserNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrEmailTaken:                {Code: ErrEmailTaken, Message: "Email already in use.", Status: http.StatusBadRequest},
	ErrUsernameTaken:             {Code: ErrUsernameTaken, Message: "Username already taken.", Status: http.StatusBadRequest},
	ErrInvalidEmail:              {Code: ErrInvalidEmail, Message: "Please provide a valid email address.", Status: http.StatusBadRequest},
	ErrInvalidUsername:           {Code: ErrInvalidUsername, Message: "Invalid username.", Status: http.StatusBadRequest},
	ErrInvalidPassword:           {Code: ErrInvalidPassword, Message: "Invalid password.", Status: http.StatusBadRequest},
	ErrMissingRegistrationFields: {Code: ErrMissingRegistrationFields, Message: "Username, email, and password are required.", Status: http.StatusBadRequest},

	// 5xxx: Internal System Errors
	ErrUnknown:             {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorageUnavailable:  {Code: ErrStorageUnavailable, Message: "File storage is not available.", Status: http.StatusServiceUnavailable},
	ErrFileStorageFailed:   {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusBadGateway},
	ErrDatabaseUnavailable: {Code: ErrDatabaseUnavailable, Message: "Database is not available.", Status: http.StatusServiceUnavailable},
}
