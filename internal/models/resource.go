package models

// ResourceKind tags the owner of a time slot.
type ResourceKind string

const (
	ResourceTeacher ResourceKind = "TEACHER"
	ResourceRoom    ResourceKind = "ROOM"
	ResourceClass   ResourceKind = "CLASS"
)

// ResourceKinds lists the kinds in detection order.
var ResourceKinds = []ResourceKind{ResourceTeacher, ResourceRoom, ResourceClass}

// ResourceRef identifies a teacher, room or class by id only. The referenced
// entity is never owned by the engine.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   int64        `json:"id"`
}

// RoomType categorises rooms for requirement matching.
type RoomType string

const (
	RoomClassroom RoomType = "classroom"
	RoomLab       RoomType = "lab"
	RoomComputer  RoomType = "computer"
	RoomSport     RoomType = "sport"
	RoomMusic     RoomType = "music"
	RoomArt       RoomType = "art"
	RoomLibrary   RoomType = "library"
	RoomOther     RoomType = "other"
)

// Room describes a bookable room.
type Room struct {
	ID       int64    `db:"id" json:"id"`
	Name     string   `db:"name" json:"name"`
	Type     RoomType `db:"room_type" json:"roomType"`
	Capacity int      `db:"capacity" json:"capacity"`
}
