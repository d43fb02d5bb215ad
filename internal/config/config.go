package config

import (
	"os"
	"strconv"
)

type Config struct {
	Env         string
	Port        int
	DatabaseURL string
	JWTSecret   string
	FrontendURL string

	PayOSClientID    string
	PayOSAPIKey      string
	PayOSChecksumKey string
	PayOSAPIURL      string
	PayOSReturnURL   string
	PayOSCancelURL   string

	VNPayTmnCode    string
	VNPayHashSecret string
	VNPayURL        string
	VNPayReturnURL  string
}

func Default() Config {
	return Config{
		Env:            "dev",
		Port:           8000,
		FrontendURL:    "http://localhost:5173",
		PayOSAPIURL:    "https://api-merchant.payos.vn",
		PayOSReturnURL: "http://localhost:5173/payment/success",
		PayOSCancelURL: "http://localhost:5173/payment/cancel",
		VNPayURL:       "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

func fromEnv(c Config) Config {
	if v := os.Getenv("BAKERY_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("BAKERY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("BAKERY_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("BAKERY_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("BAKERY_FRONTEND_URL"); v != "" {
		c.FrontendURL = v
	}
	if v := os.Getenv("PAYOS_CLIENT_ID"); v != "" {
		c.PayOSClientID = v
	}
	if v := os.Getenv("PAYOS_API_KEY"); v != "" {
		c.PayOSAPIKey = v
	}
	if v := os.Getenv("PAYOS_CHECKSUM_KEY"); v != "" {
		c.PayOSChecksumKey = v
	}
	if v := os.Getenv("PAYOS_API_URL"); v != "" {
		c.PayOSAPIURL = v
	}
	if v := os.Getenv("PAYOS_RETURN_URL"); v != "" {
		c.PayOSReturnURL = v
	}
	if v := os.Getenv("PAYOS_CANCEL_URL"); v != "" {
		c.PayOSCancelURL = v
	}
	if v := os.Getenv("VNPAY_TMN_CODE"); v != "" {
		c.VNPayTmnCode = v
	}
	if v := os.Getenv("VNPAY_HASH_SECRET"); v != "" {
		c.VNPayHashSecret = v
	}
	if v := os.Getenv("VNPAY_URL"); v != "" {
		c.VNPayURL = v
	}
	if v := os.Getenv("VNPAY_RETURN_URL"); v != "" {
		c.VNPayReturnURL = v
	}
	return c
}
