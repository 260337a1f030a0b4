// Package types contains common types used across the application
package types

// VideoInfo is a ranked catalog row shaped for API responses.
type VideoInfo struct {
	VideoID    string `json:"video_id"`
	Platform   string `json:"platform"`
	Title      string `json:"title"`
	VideoURL   string `json:"video_url"`
	CoverURL   string `json:"cover_url"`
	QueryCount int64  `json:"query_count"`
	ShowItem   bool   `json:"showItem"`
}

// RecordInfo is a personal history row shaped for API responses.
type RecordInfo struct {
	VideoID  string `json:"video_id"`
	SaveTime string `json:"save_time"`
	Title    string `json:"title"`
	VideoURL string `json:"video_url"`
	CoverURL string `json:"cover_url"`
	Platform string `json:"platform"`
	ShowItem bool   `json:"showItem"`
}

// RemoveResult reports the per-video outcome of a batch history removal.
type RemoveResult struct {
	VideoID string `json:"video_id"`
	Removed bool   `json:"removed"`
}

// ScoreResult reports the per-video outcome of a score accumulation.
// TotalScore is nil when the video matched no catalog row.
type ScoreResult struct {
	VideoID    string `json:"video_id"`
	AddedScore int    `json:"added_score"`
	TotalScore *int64 `json:"total_score"`
	Success    bool   `json:"success"`
}

// RankingBundle holds the windowed ranking lists computed from one catalog snapshot.
type RankingBundle struct {
	Search  string      `json:"search"`
	Days7   []VideoInfo `json:"7days"`
	Days30  []VideoInfo `json:"30days"`
	Days90  []VideoInfo `json:"90days"`
	Days180 []VideoInfo `json:"180days"`
	Days365 []VideoInfo `json:"365days"`
	All     []VideoInfo `json:"all"`
}

// RecordsBundle holds the windowed history lists computed from one ledger snapshot.
// Length is the total ledger size before windowing.
type RecordsBundle struct {
	Length    int          `json:"length"`
	Search    string       `json:"search"`
	Today     []RecordInfo `json:"today"`
	Yesterday []RecordInfo `json:"yesterday"`
	Days7     []RecordInfo `json:"7days"`
	Days30    []RecordInfo `json:"30days"`
	Days60    []RecordInfo `json:"60days"`
	Days90    []RecordInfo `json:"90days"`
	Days180   []RecordInfo `json:"180days"`
	Days365   []RecordInfo `json:"365days"`
	ThisMonth []RecordInfo `json:"thisMonth"`
	LastMonth []RecordInfo `json:"lastMonth"`
	All       []RecordInfo `json:"all"`
}
