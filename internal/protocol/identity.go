package protocol

import (
	"crypto/md5"

	"github.com/google/uuid"
)

const offlinePrefix = "OfflinePlayer:"

// OfflineUUID derives the identity an offline-mode server assigns to name:
// the MD5 of "OfflinePlayer:"+name stamped as a version 3, RFC 4122 UUID.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte(offlinePrefix + name))

	var id uuid.UUID
	copy(id[:], sum[:])
	id[6] = (id[6] & 0x0F) | 0x30
	id[8] = (id[8] & 0x3F) | 0x80
	return id
}
