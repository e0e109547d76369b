package model

import "time"

// Song is a repertoire entry for the worship ministry.
type Song struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	SongKey   string    `json:"song_key"`
	BPM       int       `json:"bpm"`
	Ministry  string    `json:"ministry"`
	Tags      []string  `json:"tags"`
	LyricsURL string    `json:"lyrics_url"`
	ChordsURL string    `json:"chords_url"`
	VideoURL  string    `json:"video_url"`
	CreatedAt time.Time `json:"created_at"`
}
