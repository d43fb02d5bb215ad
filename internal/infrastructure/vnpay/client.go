// Package vnpay implements the VNPay redirect-based payment flow:
// signed payment-URL construction and return/IPN verification.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

type Client struct {
	tmnCode    string
	hashSecret string
	payURL     string
	returnURL  string

	// overridable for tests
	now func() time.Time
}

func New(cfg Config) *Client {
	return &Client{
		tmnCode:    cfg.TmnCode,
		hashSecret: cfg.HashSecret,
		payURL:     cfg.PayURL,
		returnURL:  cfg.ReturnURL,
		now:        time.Now,
	}
}

type Result struct {
	Success       bool
	Message       string
	OrderID       string
	TransactionNo string
	ResponseCode  string
	Amount        float64
}

// CreatePaymentURL builds the signed redirect URL. No network call:
// the browser is sent to the gateway directly.
func (c *Client) CreatePaymentURL(orderID string, amount float64, orderInfo, clientIP string) string {
	params := url.Values{}
	params.Set("vnp_Version", "2.1.0")
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", c.tmnCode)
	// VNPay encodes amounts multiplied by 100
	params.Set("vnp_Amount", strconv.FormatInt(int64(amount*100), 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", orderID)
	params.Set("vnp_OrderInfo", orderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", c.returnURL)
	params.Set("vnp_IpAddr", clientIP)
	params.Set("vnp_CreateDate", c.now().Format("20060102150405"))

	// Encode() sorts keys and URL-encodes, which is exactly the
	// canonical form the gateway signs
	query := params.Encode()
	secureHash := c.hmacSHA512(query)
	return c.payURL + "?" + query + "&vnp_SecureHash=" + secureHash
}

// VerifyPayment pops the carried hash, recomputes it over the
// remaining sorted and encoded params and compares in constant time.
// On mismatch no field of the input is trusted.
func (c *Client) VerifyPayment(params map[string]string) (Result, error) {
	carried := params["vnp_SecureHash"]
	if carried == "" {
		return Result{}, ErrBadSignature
	}
	values := url.Values{}
	for k, v := range params {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		values.Set(k, v)
	}
	expected := c.hmacSHA512(values.Encode())
	if !hmac.Equal([]byte(expected), []byte(carried)) {
		return Result{}, ErrBadSignature
	}

	responseCode := params["vnp_ResponseCode"]
	amount, _ := strconv.ParseFloat(params["vnp_Amount"], 64)
	res := Result{
		OrderID:       params["vnp_TxnRef"],
		TransactionNo: params["vnp_TransactionNo"],
		ResponseCode:  responseCode,
		Amount:        amount / 100,
	}
	if responseCode == "00" {
		res.Success = true
		res.Message = "Payment successful"
	} else {
		res.Message = fmt.Sprintf("Payment failed with code: %s", responseCode)
	}
	return res, nil
}

var ErrBadSignature = fmt.Errorf("vnpay: invalid signature")

func (c *Client) hmacSHA512(data string) string {
	mac := hmac.New(sha512.New, []byte(c.hashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
