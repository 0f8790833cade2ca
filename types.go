package main

import (
	"sync"
	"sync/atomic"
	"time"
)

// --- ⚙️ CONFIGURATION ---
const (
	BOT_NAME   = "MEGA → GOFILE BOT"
	OWNER_NAME = "Arsynox"
)

// Transfer stages
const (
	StageDownload = "download"
	StageUpload   = "upload"
)

// --- 💾 DATA STRUCTURES ---

// TransferRequest is one user-submitted Mega → Gofile job.
type TransferRequest struct {
	ID        string
	Link      string
	UserID    int64
	ChatID    int64
	CreatedAt time.Time
}

// ProgressState is the raw byte-count progress of the active stage.
type ProgressState struct {
	Stage      string // "download" or "upload"
	FileName   string
	Done       int64
	Total      int64
	Percentage int
}

// TransferRecord is what lands in the history collection once a
// transfer reaches a terminal state.
type TransferRecord struct {
	ID         string        `bson:"transfer_id" json:"transfer_id"`
	UserID     int64         `bson:"user_id" json:"user_id"`
	Link       string        `bson:"link" json:"link"`
	FileName   string        `bson:"file_name" json:"file_name"`
	Size       int64         `bson:"size" json:"size"`
	Status     string        `bson:"status" json:"status"` // "success" | "failed" | "cancelled"
	ResultURL  string        `bson:"result_url" json:"result_url"`
	Error      string        `bson:"error" json:"error"`
	StartedAt  time.Time     `bson:"started_at" json:"started_at"`
	FinishedAt time.Time     `bson:"finished_at" json:"finished_at"`
	Duration   time.Duration `bson:"duration_ns" json:"duration_ns"`
}

// --- 🌍 GLOBAL VARIABLES ---
var (
	startTime        = time.Now()
	persistentUptime atomic.Int64 // seconds, shared between the ticker and the status cards

	transfersOK     int64
	transfersFailed int64
	countersMutex   sync.Mutex
)
