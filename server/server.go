package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"taptunes/cache"
	"taptunes/config"
	"taptunes/core/playback"
	"taptunes/core/rfid"
	"taptunes/db"
	"taptunes/logger"
	"taptunes/model"
	"taptunes/repository"
	"taptunes/storage"
)

// Start initializes and starts the HTTP server. Blocks until shutdown.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Database
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()
	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}
	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	// Redis is optional: without it there is no snapshot persistence or
	// scan debounce, but everything else works.
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, continuing without it", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
	}

	// MinIO is optional: browser-mode audio falls back to local disk.
	if cfg.MinioEnabled {
		if err := storage.InitMinio(cfg); err != nil {
			logger.Warn("MinIO unavailable, serving audio from local disk", logger.ErrorField(err))
		}
	}

	ensureDirExists(cfg.AudioDir)

	// Repositories
	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	cardRepo := repository.NewGormCardRepository(db.GormDB)
	settingsRepo := repository.NewMySQLSettingsRepository(db.DB)

	// Playback engine
	selector := playback.NewSelector(cfg.PlayerOverride)
	supervisor := playback.NewSupervisor(selector)
	volumeCtl := playback.NewVolumeController()
	engine := playback.NewEngine(trackRepo, supervisor, volumeCtl)

	restoreEngineState(engine, settingsRepo, cfg)

	// RFID dispatch
	dispatcher := rfid.NewDispatcher(cardRepo, trackRepo, settingsRepo, engine)
	registrar := rfid.NewRegistrar()

	// Websocket state push; also persists snapshots on every change.
	hub := NewStateHub(engine)
	engine.OnChange(func(st playback.Status) {
		hub.BroadcastState(st)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.SaveStateSnapshot(ctx, st); err != nil {
			logger.Debug("snapshot persistence failed", logger.ErrorField(err))
		}
	})
	go hub.Run(cfg.AudioDir)
	defer hub.Close()

	playbackHandler := NewPlaybackHandler(engine, trackRepo, settingsRepo)
	rfidHandler := NewRFIDHandler(cardRepo, dispatcher, registrar)
	libraryHandler := NewLibraryHandler(trackRepo)
	settingsHandler := NewSettingsHandler(settingsRepo)
	audioHandler := NewAudioHandler(cfg.AudioDir)

	router := mux.NewRouter()

	// CORS middleware
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Playback control surface
	router.HandleFunc("/api/playback/status", playbackHandler.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playback/play/track", playbackHandler.PlayTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/play/playlist", playbackHandler.PlayPlaylistHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/play", playbackHandler.PlayHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/pause", playbackHandler.PauseHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/stop", playbackHandler.StopHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/next", playbackHandler.NextHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/previous", playbackHandler.PreviousHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/seek", playbackHandler.SeekHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/volume", playbackHandler.VolumeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/mode", playbackHandler.ModeHandler).Methods(http.MethodPost)

	// RFID surface
	router.HandleFunc("/api/rfid/cards", rfidHandler.UpsertCardHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/rfid/cards", rfidHandler.ListCardsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/rfid/cards/{id}", rfidHandler.DeleteCardHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/rfid/scan", rfidHandler.ScanHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/rfid/card-detected", rfidHandler.CardDetectedHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/rfid/read", rfidHandler.ReadCardHandler).Methods(http.MethodPost)

	// Library surface
	router.HandleFunc("/api/tracks", libraryHandler.ListTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks", libraryHandler.CreateTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}", libraryHandler.DeleteTrackHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/playlists/{id}/tracks", libraryHandler.PlaylistTracksHandler).Methods(http.MethodGet)

	// Settings surface
	router.HandleFunc("/api/settings", settingsHandler.GetSettingsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/settings", settingsHandler.UpdateSettingsHandler).Methods(http.MethodPut)

	// Live state push
	router.HandleFunc("/ws/state", hub.SubscribeHandler)

	// Browser-mode audio
	router.PathPrefix("/audio/").Handler(audioHandler)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	// Kill any live player before the process exits.
	supervisor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

// restoreEngineState seeds volume and mode at startup. The Redis snapshot is
// the freshest source (written on every state change); the settings table
// covers installs without Redis; config defaults cover a first boot.
func restoreEngineState(engine *playback.Engine, settingsRepo repository.SettingsRepository, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	settings, err := settingsRepo.Load(ctx)
	if err != nil {
		logger.Warn("settings load failed, using defaults", logger.ErrorField(err))
		settings = nil
	}

	var snapshot *playback.Status
	var snap playback.Status
	if ok, err := cache.LoadStateSnapshot(ctx, &snap); err == nil && ok {
		snapshot = &snap
	} else if err != nil {
		logger.Warn("snapshot load failed", logger.ErrorField(err))
	}

	volume, mode := startupVolumeMode(cfg, settings, snapshot)
	engine.Restore(volume, mode)
	logger.Info("playback state restored",
		logger.Int("volume", volume),
		logger.String("mode", string(mode)))
}

// startupVolumeMode resolves the startup volume and mode, preferring the
// persisted snapshot over the settings table over config defaults.
func startupVolumeMode(cfg *config.Config, settings *model.Settings, snapshot *playback.Status) (int, playback.Mode) {
	volume := cfg.DefaultVolume
	mode := playback.Mode(cfg.DefaultMode)

	if settings != nil {
		if settings.Volume >= 0 && settings.Volume <= 100 {
			volume = settings.Volume
		}
		if playback.ValidMode(playback.Mode(settings.PlaybackMode)) {
			mode = playback.Mode(settings.PlaybackMode)
		}
	}

	if snapshot != nil {
		if snapshot.Volume >= 0 && snapshot.Volume <= 100 {
			volume = snapshot.Volume
		}
		if playback.ValidMode(snapshot.PlaybackMode) {
			mode = snapshot.PlaybackMode
		}
	}

	return volume, mode
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("creating directory", logger.String("path", path))
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("failed to create directory", logger.String("path", path), logger.ErrorField(err))
		}
	} else if err != nil {
		logger.Fatal("failed to check directory", logger.String("path", path), logger.ErrorField(err))
	}
}
