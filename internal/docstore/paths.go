package docstore

import "fmt"

// Document paths. Kept in one place so that every component addresses
// the same layout:
//
//	users                      directory, id -> display name
//	users/<id>                 identity record
//	users/<id>/sent            pending requests this user sent
//	users/<id>/received        pending requests this user received
//	users/<id>/friends         accepted friendships
//	users/<id>/progress        owned progress record ids
//	progress/<rid>/meta        record owner, name, creation time
//	progress/<rid>/fields      schema-less progress fields
//	rank/<field>               numeric index over one progress field

const UserDirectory = "users"

func UserDoc(id string) string {
	return fmt.Sprintf("users/%s", id)
}

func SentDoc(id string) string {
	return fmt.Sprintf("users/%s/sent", id)
}

func ReceivedDoc(id string) string {
	return fmt.Sprintf("users/%s/received", id)
}

func FriendsDoc(id string) string {
	return fmt.Sprintf("users/%s/friends", id)
}

func OwnedRecordsDoc(id string) string {
	return fmt.Sprintf("users/%s/progress", id)
}

func RecordMetaDoc(recordID string) string {
	return fmt.Sprintf("progress/%s/meta", recordID)
}

func RecordFieldsDoc(recordID string) string {
	return fmt.Sprintf("progress/%s/fields", recordID)
}

func RankIndex(field string) string {
	return fmt.Sprintf("rank/%s", field)
}
