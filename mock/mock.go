// Package mock provides an in-process fake of the Rointe cloud for tests
// and manual experiments. It serves both external collaborators on one
// loopback listener: the identity endpoints (credential verification,
// account info, token refresh) and the device data store (installations,
// devices, energy samples, firmware settings).
package mock

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Credentials accepted by a mock server.
const (
	Username = "user@example.com"
	Password = "mock-password"
	APIKey   = "mock-api-key"
	LocalID  = "mock-local-id"
)

// Server is one mock cloud instance. All mutators are safe for concurrent
// use with in-flight requests.
type Server struct {
	listener   net.Listener
	httpServer *http.Server

	mu sync.Mutex

	accessToken  string
	refreshToken string
	tokenTTL     int // seconds, reported as expiresIn

	installations map[string]Installation
	devices       map[string]map[string]any
	energy        map[string]map[string]EnergySample
	firmware      map[string]map[string]string

	patches     map[string][]map[string]any
	patchStatus int

	loginCalls   int
	refreshCalls int
	energyCalls  int
}

// Installation is a seeded installation record.
type Installation struct {
	Name     string
	Location string
}

// EnergySample is a seeded per-hour energy sample.
type EnergySample struct {
	KWh            float64
	EffectivePower float64
}

// Start launches a mock server on a dynamic loopback port. It panics when
// the listener cannot be created.
func Start() *Server {
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		log.Fatal(err)
	}

	s := &Server{
		listener:      listener,
		tokenTTL:      3600,
		installations: make(map[string]Installation),
		devices:       make(map[string]map[string]any),
		energy:        make(map[string]map[string]EnergySample),
		firmware:      make(map[string]map[string]string),
		patches:       make(map[string][]map[string]any),
		patchStatus:   http.StatusOK,
	}
	s.rotateTokens()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/identitytoolkit/v3/relyingparty/verifyPassword", s.handleVerifyPassword)
	router.POST("/identitytoolkit/v3/relyingparty/getAccountInfo", s.handleAccountInfo)
	router.POST("/v1/token", s.handleRefresh)

	data := router.Group("/", s.checkDataAuth)
	{
		data.GET("/installations2.json", s.handleInstallations)
		data.GET("/devices/:device", s.handleDevice)
		data.PATCH("/devices/:device/data.json", s.handleDevicePatch)
		data.GET("/history_statistics/:device/daily/:day/:hour", s.handleEnergy)
		data.GET("/global_settings.json", s.handleGlobalSettings)
	}

	s.httpServer = &http.Server{Handler: router}
	go func() {
		_ = s.httpServer.Serve(listener)
	}()

	return s
}

// BaseURL returns the URL clients should use for every endpoint group.
func (s *Server) BaseURL() string {
	return "http://" + s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	_ = s.httpServer.Shutdown(ctx)
}

// AddInstallation seeds an installation owned by the mock user.
func (s *Server) AddInstallation(id string, inst Installation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installations[id] = inst
}

// AddDevice seeds a device blob, as returned by the device path.
func (s *Server) AddDevice(id string, blob map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[id] = blob
}

// SetEnergySample seeds the energy sample for one device hour.
func (s *Server) SetEnergySample(deviceID string, hour time.Time, sample EnergySample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.energy[deviceID] == nil {
		s.energy[deviceID] = make(map[string]EnergySample)
	}
	s.energy[deviceID][energyKey(hour)] = sample
}

// SetFirmware seeds the global firmware settings map.
func (s *Server) SetFirmware(firmware map[string]map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firmware = firmware
}

// SetPatchStatus forces every device patch to answer with the given HTTP
// status. Failing patches are still recorded.
func (s *Server) SetPatchStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patchStatus = status
}

// Patches returns the patch bodies received for a device, in order.
func (s *Server) Patches(deviceID string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.patches[deviceID]...)
}

// Counts returns how many login, refresh and energy requests were served.
func (s *Server) Counts() (logins, refreshes, energyFetches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCalls, s.refreshCalls, s.energyCalls
}

// InvalidateAccessToken rotates the server-side tokens so the client's
// current access token stops being accepted.
func (s *Server) InvalidateAccessToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = "mock-access-" + uuid.New().String()
}

// SetTokenTTL changes the TTL reported on login and refresh responses.
func (s *Server) SetTokenTTL(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = seconds
}

func (s *Server) rotateTokens() {
	s.accessToken = "mock-access-" + uuid.New().String()
	s.refreshToken = "mock-refresh-" + uuid.New().String()
}

func (s *Server) handleVerifyPassword(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginCalls++

	if c.Query("key") != APIKey {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "API_KEY_INVALID"}})
		return
	}
	if c.PostForm("email") != Username || c.PostForm("password") != Password {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "INVALID_PASSWORD"}})
		return
	}

	s.rotateTokens()
	c.JSON(http.StatusOK, gin.H{
		"idToken":      s.accessToken,
		"refreshToken": s.refreshToken,
		"expiresIn":    strconv.Itoa(s.tokenTTL),
	})
}

func (s *Server) handleAccountInfo(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.PostForm("idToken") != s.accessToken {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "INVALID_ID_TOKEN"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": []gin.H{{"localId": LocalID}},
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++

	if c.PostForm("grant_type") != "refresh_token" || c.PostForm("refresh_token") != s.refreshToken {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "INVALID_REFRESH_TOKEN"}})
		return
	}

	s.rotateTokens()
	c.JSON(http.StatusOK, gin.H{
		"idToken":       s.accessToken,
		"refresh_token": s.refreshToken,
		"expiresIn":     strconv.Itoa(s.tokenTTL),
	})
}

// checkDataAuth verifies the access token riding on data store requests.
func (s *Server) checkDataAuth(c *gin.Context) {
	s.mu.Lock()
	token := s.accessToken
	s.mu.Unlock()

	if c.Query("auth") != token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Permission denied"})
		return
	}
	c.Next()
}

func (s *Server) handleInstallations(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The store filters by JSON-quoted owner id.
	owner := strings.Trim(c.Query("equalTo"), `"`)
	if c.Query("orderBy") != `"userid"` || owner != LocalID {
		c.Data(http.StatusOK, "application/json", []byte("null"))
		return
	}

	if len(s.installations) == 0 {
		c.Data(http.StatusOK, "application/json", []byte("null"))
		return
	}

	response := gin.H{}
	for id, inst := range s.installations {
		response[id] = gin.H{
			"name":     inst.Name,
			"location": inst.Location,
			"userid":   LocalID,
		}
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleDevice(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSuffix(c.Param("device"), ".json")
	blob, ok := s.devices[id]
	if !ok {
		c.Data(http.StatusOK, "application/json", []byte("null"))
		return
	}
	c.JSON(http.StatusOK, blob)
}

func (s *Server) handleDevicePatch(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("device")
	s.patches[id] = append(s.patches[id], body)

	if s.patchStatus != http.StatusOK {
		c.JSON(s.patchStatus, gin.H{"error": "update rejected"})
		return
	}

	// Merge into the stored blob like the real store does.
	if blob, ok := s.devices[id]; ok {
		data, _ := blob["data"].(map[string]any)
		if data == nil {
			data = make(map[string]any)
			blob["data"] = data
		}
		for k, v := range body {
			data[k] = v
		}
	}

	c.JSON(http.StatusOK, body)
}

func (s *Server) handleEnergy(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.energyCalls++

	deviceID := c.Param("device")
	key := c.Param("day") + "/" + strings.TrimSuffix(c.Param("hour"), ".json")

	sample, ok := s.energy[deviceID][key]
	if !ok {
		c.Data(http.StatusOK, "application/json", []byte("null"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kwh":             sample.KWh,
		"effective_power": sample.EffectivePower,
	})
}

func (s *Server) handleGlobalSettings(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.firmware) == 0 {
		c.Data(http.StatusOK, "application/json", []byte("null"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"firmware": s.firmware})
}

func energyKey(hour time.Time) string {
	return fmt.Sprintf("%s/%02d", hour.Format("2006-01-02"), hour.Hour())
}

// RadiatorV2 returns a plausible V2 radiator blob for seeding a mock
// server. The schedule runs comfort 07-22 on weekdays and eco otherwise.
func RadiatorV2(id, name string) map[string]any {
	schedule := make([]string, 7)
	for day := range schedule {
		var hours strings.Builder
		for hour := 0; hour < 24; hour++ {
			if day < 5 && hour >= 7 && hour < 22 {
				hours.WriteByte('C')
			} else {
				hours.WriteByte('E')
			}
		}
		schedule[day] = hours.String()
	}

	now := time.Now().UnixMilli()

	return map[string]any{
		"serialnumber": "SN-" + id,
		"data": map[string]any{
			"type":                      "radiator",
			"product_version":           "v2",
			"name":                      name,
			"nominal_power":             1300,
			"power":                     true,
			"status":                    "comfort",
			"mode":                      "auto",
			"temp":                      21.0,
			"temp_calc":                 20.5,
			"temp_probe":                20.7,
			"comfort":                   21.0,
			"eco":                       18.0,
			"ice":                       7.0,
			"um_max_temp":               30.0,
			"um_min_temp":               7.0,
			"user_mode":                 false,
			"ice_mode":                  true,
			"schedule":                  schedule,
			"schedule_day":              0,
			"schedule_hour":             0,
			"last_sync_datetime_app":    now,
			"last_sync_datetime_device": now,
		},
		"firmware": map[string]any{
			"firmware_version_device": "1.4.3",
		},
	}
}
