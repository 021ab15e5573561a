package types

// Standard collection names.
const (
	UsersCollection = "users"
	ChatsCollection = "chats"
)

// StandardCollectionNames lists all standard collections for enumeration.
var StandardCollectionNames = []string{
	UsersCollection,
	ChatsCollection,
}
