package model

import (
	"encoding/base32"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VideoKind tags how a room's video is played.
type VideoKind string

const (
	VideoNone   VideoKind = "none"
	VideoDirect VideoKind = "direct"
	VideoEmbed  VideoKind = "embed"
)

const (
	DefaultCapacity = 10
	MaxCapacity     = 50
)

// embedHosts are played through the provider's own player.
var embedHosts = []string{
	"youtube.com", "youtu.be", "vimeo.com", "dailymotion.com",
	"netflix.com", "primevideo.com", "hotstar.com",
}

// Room is one shared viewing session.  Participants is kept sorted and free
// of duplicates; the host is always a participant.
type Room struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPublic    bool   `json:"is_public"`
	HostID      string `json:"host_id"`

	VideoURL   string    `json:"video_url"`
	VideoTitle string    `json:"video_title,omitempty"`
	VideoKind  VideoKind `json:"video_kind"`

	Position  float64   `json:"position"`
	Playing   bool      `json:"playing"`
	UpdatedAt time.Time `json:"updated_at"`

	Participants []string  `json:"participants"`
	Capacity     int       `json:"capacity"`
	CreatedAt    time.Time `json:"created_at"`
}

// Playback is the host-owned state participants converge to.
type Playback struct {
	VideoURL  string    `json:"video_url"`
	Position  float64   `json:"position"`
	Playing   bool      `json:"playing"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRoom creates a room hosted by hostID.  A capacity outside 1..MaxCapacity
// falls back to DefaultCapacity.
func NewRoom(name, description string, public bool, capacity int, hostID string) *Room {
	if capacity < 1 || capacity > MaxCapacity {
		capacity = DefaultCapacity
	}
	now := time.Now().UTC()
	return &Room{
		Code:         NewRoomCode(),
		Name:         name,
		Description:  description,
		IsPublic:     public,
		HostID:       hostID,
		VideoKind:    VideoNone,
		UpdatedAt:    now,
		Participants: []string{hostID},
		Capacity:     capacity,
		CreatedAt:    now,
	}
}

// NewRoomCode returns 8 upper-case base32 characters taken from a random UUID.
func NewRoomCode() string {
	u := uuid.New()
	return base32.StdEncoding.EncodeToString(u[:])[:8]
}

func (r Room) MarshalBinary() ([]byte, error) { return json.Marshal(r) }

func (r *Room) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, r) }

func (r *Room) HasParticipant(userID string) bool {
	i := sort.SearchStrings(r.Participants, userID)
	return i < len(r.Participants) && r.Participants[i] == userID
}

func (r *Room) IsHost(userID string) bool { return r.HostID == userID }

// Join adds userID.  It reports false when the room is full; joining twice
// is a no-op.
func (r *Room) Join(userID string) bool {
	if r.HasParticipant(userID) {
		return true
	}
	if len(r.Participants) >= r.Capacity {
		return false
	}
	r.Participants = append(r.Participants, userID)
	sort.Strings(r.Participants)
	return true
}

// Leave removes userID.  When the host leaves and others remain the host
// passes to the smallest remaining id.
func (r *Room) Leave(userID string) {
	i := sort.SearchStrings(r.Participants, userID)
	if i == len(r.Participants) || r.Participants[i] != userID {
		return
	}
	r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
	if r.HostID == userID && len(r.Participants) > 0 {
		r.HostID = r.Participants[0]
	}
}

func (r *Room) Empty() bool { return len(r.Participants) == 0 }

// SetVideo switches the video and rewinds playback.
func (r *Room) SetVideo(rawURL, title string) {
	r.VideoURL = rawURL
	r.VideoTitle = title
	r.VideoKind = KindOf(rawURL)
	r.Position = 0
	r.Playing = false
	r.UpdatedAt = time.Now().UTC()
}

// ApplyPlayback records a new authoritative state from the host.
func (r *Room) ApplyPlayback(playing bool, position float64) {
	if position < 0 {
		position = 0
	}
	r.Playing = playing
	r.Position = position
	r.UpdatedAt = time.Now().UTC()
}

func (r *Room) Playback() Playback {
	return Playback{
		VideoURL:  r.VideoURL,
		Position:  r.Position,
		Playing:   r.Playing,
		UpdatedAt: r.UpdatedAt,
	}
}

// KindOf derives the video kind from its locator.
func KindOf(rawURL string) VideoKind {
	if strings.TrimSpace(rawURL) == "" {
		return VideoNone
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return VideoDirect
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range embedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return VideoEmbed
		}
	}
	return VideoDirect
}
