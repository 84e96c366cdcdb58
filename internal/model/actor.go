package model

// SystemActor is the actor ref used for writes not attributable to a person
// (reconciliation sweeps, automated flags).
const SystemActor = "system"

// ActorInfo is the display metadata for an event's acting party, resolved
// from the external profile directory.
type ActorInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// UnknownActor returns the sentinel record used when an actor id has no
// matching profile. History must always render even if a profile was deleted.
func UnknownActor(id string) *ActorInfo {
	return &ActorInfo{ID: id, Name: "System/Unknown"}
}
