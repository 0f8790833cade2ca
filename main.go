package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var (
	cfg      *Config
	rdb      *redis.Client
	ctx      = context.Background()
	registry *AdminRegistry
	pipeline *TransferPipeline

	upgrader  = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	wsClients = make(map[*websocket.Conn]bool)
	wsMutex   sync.Mutex
)

// ✅ 1. Redis Connection
func initRedis(redisURL string) {
	if redisURL == "" {
		fmt.Println("⚠️ [REDIS] Warning: redis.url is empty! Admins and counters stay in memory only.")
		return
	}
	fmt.Println("📡 [REDIS] Connecting to Redis...")
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("❌ Redis URL parsing failed: %v", err)
	}
	client := redis.NewClient(opt)
	if _, err = client.Ping(ctx).Result(); err != nil {
		fmt.Printf("⚠️ [REDIS] Connection failed, running memory-only: %v\n", err)
		return
	}
	rdb = client
	fmt.Println("🚀 [REDIS] Connection Established!")
}

// ✅ 2. Load Persistent Uptime
func loadPersistentUptime() {
	if rdb != nil {
		val, err := rdb.Get(ctx, "total_uptime").Int64()
		if err == nil {
			persistentUptime.Store(val)
		}
	}
	fmt.Println("⏳ [UPTIME] Persistent uptime loaded from Redis")
}

// ✅ 3. Start Persistent Uptime Tracker
func startPersistentUptimeTracker() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for range ticker.C {
			total := persistentUptime.Add(60)
			if rdb != nil {
				rdb.Set(ctx, "total_uptime", total, 0)
			}
		}
	}()
}

// sendAliveNotification pings every admin when the bot comes up.
func sendAliveNotification(bot *tgbotapi.BotAPI) {
	message := fmt.Sprintf(`Hey %s is Alive 🥳

✅ Bot is ready to process Mega links
✅ Admin management active (MAIN ADMIN ONLY)
👑 Main Admin: %d
👥 Admins: %s`, BOT_NAME, registry.MainAdmin(), formatAdminList(registry.Delegated()))

	for _, id := range registry.List() {
		sendTo(bot, id, message)
		fmt.Printf("📣 [ALIVE] Notified admin %d\n", id)
	}
}

func main() {
	fmt.Printf("🚀 %s | STARTING\n", BOT_NAME)

	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	var err error
	cfg, err = loadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ FATAL ERROR: %v", err)
	}

	initRedis(cfg.Redis.URL)
	loadPersistentUptime()
	startPersistentUptimeTracker()
	connectMongo(cfg.Mongo.URL)

	registry = NewAdminRegistry(cfg.Admin.MainID)
	registry.loadAdmins()
	pipeline = NewTransferPipeline(cfg, NewMegaClient(), NewGofileClient())

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Fatalf("❌ Telegram login failed: %v", err)
	}
	fmt.Printf("✅ [TELEGRAM] Authorized as @%s\n", bot.Self.UserName)

	// Web status server
	http.HandleFunc("/api/status", handleStatusAPI)
	http.HandleFunc("/api/transfers", handleTransfersAPI)
	http.HandleFunc("/ws", handleWebSocket)
	go func() {
		fmt.Printf("🌐 Web Server running on port %s\n", cfg.Web.Port)
		if err := http.ListenAndServe(":"+cfg.Web.Port, nil); err != nil {
			log.Printf("❌ Server error: %v\n", err)
		}
	}()

	sendAliveNotification(bot)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	go func() {
		for update := range updates {
			handleUpdate(bot, update)
		}
	}()
	fmt.Println("🤖 [BOT] Polling for updates...")

	// Shutdown Handling
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Println("\n🛑 Shutting down system...")
	bot.StopReceivingUpdates()
	if mongoClient != nil {
		mongoClient.Disconnect(context.Background())
		fmt.Println("🍃 MongoDB Disconnected")
	}
	if rdb != nil {
		rdb.Close()
	}
	fmt.Println("👋 Goodbye!")
}

// ==================== WEB STATUS SERVER ====================

func handleStatusAPI(w http.ResponseWriter, r *http.Request) {
	countersMutex.Lock()
	ok, failed := transfersOK, transfersFailed
	countersMutex.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"bot":             BOT_NAME,
		"uptime_seconds":  int64(time.Since(startTime).Seconds()),
		"total_uptime":    persistentUptime.Load(),
		"active":          pipeline.ActiveCount(),
		"completed":       ok,
		"failed":          failed,
		"admins":          len(registry.List()),
		"history_enabled": historyCollection != nil,
	})
}

func handleTransfersAPI(w http.ResponseWriter, r *http.Request) {
	records, err := recentTransfers(50)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	wsMutex.Lock()
	wsClients[conn] = true
	wsMutex.Unlock()
	defer func() {
		wsMutex.Lock()
		delete(wsClients, conn)
		wsMutex.Unlock()
	}()

	conn.WriteJSON(map[string]any{
		"event":  "hello",
		"bot":    BOT_NAME,
		"active": pipeline.ActiveCount(),
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcastWS pushes a progress or terminal event to every dashboard.
func broadcastWS(data any) {
	wsMutex.Lock()
	defer wsMutex.Unlock()
	for conn := range wsClients {
		conn.WriteJSON(data)
	}
}
