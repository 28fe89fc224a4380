package config

import "os"

// Config holds the server's environment-driven settings.
type Config struct {
	Addr           string
	MongoURI       string
	DBPath         string
	AllowedOrigins string
}

// FromEnv reads configuration from the environment.
func FromEnv() Config {
	return Config{
		Addr:           ":" + getenv("PORT", "8080"),
		MongoURI:       os.Getenv("MONGO_URI"),
		DBPath:         getenv("DB_PATH", "./typing-racer.db"),
		AllowedOrigins: getenv("ALLOWED_ORIGINS", "http://localhost:3000"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
