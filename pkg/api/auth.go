package api

// RegisterDeviceRequest запрос на регистрацию нового устройства.
type RegisterDeviceRequest struct {
	Name string `json:"name,omitempty"`
}

// RegisterDeviceResponse ответ на регистрацию устройства.
// Secret возвращается ровно один раз; сервер хранит только его hash.
type RegisterDeviceResponse struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
}

// TokenRequest запрос на выпуск access token по device credentials.
type TokenRequest struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
}

// TokenResponse ответ с access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
