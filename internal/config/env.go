package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Bool reads an environment variable and returns a boolean value.
// Only "true" or "false" (case-insensitive) are recognised; any other
// value results in the provided default.
func Bool(key string, defaultValue bool) bool {
	val := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch val {
	case "":
		return defaultValue
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return defaultValue
	}
}

// LoadDotEnv loads the given dotenv files (".env" when none are given) into the
// process environment. Missing files are ignored; variables that are already
// set are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// fromEnv builds the environment layer. Unset or unparsable values stay at
// their zero value so they do not override lower layers when merged.
func fromEnv() Config {
	var c Config
	c.Transport = strings.ToLower(strings.TrimSpace(os.Getenv("MAIL_TRANSPORT")))
	c.Hostname = os.Getenv("SMTP_HOSTNAME")

	c.SMTP.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.SMTP.Port = intEnv("SMTP_PORT")
	c.SMTP.Username = os.Getenv("SMTP_USER")
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	c.SMTP.CAFile = os.Getenv("SMTP_TLS_CA")

	// The SMTP account doubles as the sender identity unless overridden.
	c.Sender.Address = strings.TrimSpace(os.Getenv("SMTP_SENDER_ADDRESS"))
	if c.Sender.Address == "" {
		c.Sender.Address = strings.TrimSpace(c.SMTP.Username)
	}
	c.Sender.Name = os.Getenv("SMTP_SENDER_NAME")
	c.Sender.SupportAddress = strings.TrimSpace(os.Getenv("SMTP_SUPPORT_ADDRESS"))
	c.Sender.AdminAddress = strings.TrimSpace(os.Getenv("SMTP_ADMIN_ADDRESS"))
	c.Sender.Brand = os.Getenv("MAIL_BRAND")
	c.Sender.ResetURL = os.Getenv("MAIL_RESET_URL")
	c.Sender.OTPValidity = durationEnv("MAIL_OTP_VALIDITY")
	c.Sender.RecipientDomains = RecipientDomains()

	c.Retry.Backoff = durationEnv("SMTP_RETRY_BACKOFF")

	c.Queue.Workers = intEnv("SMTP_QUEUE_WORKERS")
	c.Queue.Size = intEnv("SMTP_QUEUE_SIZE")

	c.DKIM.Selector = strings.TrimSpace(os.Getenv("SMTP_DKIM_SELECTOR"))
	c.DKIM.KeyPath = strings.TrimSpace(os.Getenv("SMTP_DKIM_KEY_PATH"))
	c.DKIM.PrivateKey = os.Getenv("SMTP_DKIM_PRIVATE_KEY")
	c.DKIM.Domain = strings.TrimSpace(os.Getenv("SMTP_DKIM_DOMAIN"))

	c.SpoolDir = strings.TrimSpace(os.Getenv("SMTP_SPOOL_DIR"))
	return c
}

// applyExplicitEnv sets the fields whose zero value is meaningful from any
// variable that is present: SMTP_TLS_INSECURE=false and SMTP_DEBUG=false turn
// off a file setting, and SMTP_RETRY_ATTEMPTS=0 asks for a single attempt.
func applyExplicitEnv(c *Config) {
	if _, ok := lookupEnv("SMTP_TLS_INSECURE"); ok {
		c.SMTP.InsecureSkipVerify = Bool("SMTP_TLS_INSECURE", c.SMTP.InsecureSkipVerify)
	}
	if _, ok := lookupEnv("SMTP_DEBUG"); ok {
		c.Debug = Bool("SMTP_DEBUG", c.Debug)
	}
	if v, ok := lookupEnv("SMTP_RETRY_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.MaxAttempts = n
		}
	}
}

func lookupEnv(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

// RecipientDomains returns the lowercase domains listed in
// SMTP_ALLOW_RECIPIENT_DOMAINS. An empty result means every domain is allowed.
func RecipientDomains() []string {
	value := strings.TrimSpace(os.Getenv("SMTP_ALLOW_RECIPIENT_DOMAINS"))
	if value == "" {
		return nil
	}
	var domains []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(part)), ".")
		if part == "" {
			continue
		}
		domains = append(domains, part)
	}
	return domains
}

func intEnv(key string) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func durationEnv(key string) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
