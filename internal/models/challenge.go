package models

import "time"

// Challenge is an issued CAPTCHA: the text drawn into the image and the
// lowercased answer expected back.
type Challenge struct {
	Key       string    `json:"key" bson:"_id"`
	Challenge string    `json:"challenge" bson:"challenge"`
	Response  string    `json:"response" bson:"response"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// Expired reports whether the challenge can no longer be answered
func (c *Challenge) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// CaptchaResponse is returned when a new challenge is issued
type CaptchaResponse struct {
	CaptchaKey   string `json:"captcha_key"`
	CaptchaImage string `json:"captcha_image"`
}
