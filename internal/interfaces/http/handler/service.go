package handler

import (
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ServiceHandler serves the built-in metered services. They return canned
// data; the point of the platform is the admission pipeline in front of them,
// not the payloads behind it.
type ServiceHandler struct {
	BaseHandler
}

// NewServiceHandler creates a new ServiceHandler
func NewServiceHandler() *ServiceHandler {
	return &ServiceHandler{}
}

// Available lists the metered services. Public: clients need the catalog
// before they hold a key.
// GET /api/v1/services/available
func (h *ServiceHandler) Available(c *gin.Context) {
	h.Success(c, []gin.H{
		{"name": "weather", "path": "/api/v1/services/weather", "description": "Weather forecast by city"},
		{"name": "currency", "path": "/api/v1/services/currency", "description": "Currency conversion at indicative rates"},
		{"name": "random-fact", "path": "/api/v1/services/random-fact", "description": "A random fact"},
		{"name": "ip-lookup", "path": "/api/v1/services/ip-lookup", "description": "IP address classification"},
	})
}

var weatherConditions = []string{"clear", "partly cloudy", "overcast", "rain", "thunderstorm", "snow", "fog"}

// Weather returns a forecast for the requested city.
// GET /api/v1/services/weather?city=London
func (h *ServiceHandler) Weather(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		city = "London"
	}

	h.Success(c, gin.H{
		"city":        city,
		"condition":   weatherConditions[rand.Intn(len(weatherConditions))],
		"temperature": rand.Intn(45) - 10,
		"humidity":    rand.Intn(60) + 30,
		"observed_at": time.Now().UTC().Format(time.RFC3339),
	})
}

var currencyRates = map[string]float64{
	"USD": 1.0,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 147.3,
	"CHF": 0.86,
	"CNY": 7.12,
}

// Currency converts an amount between two currencies at indicative rates.
// GET /api/v1/services/currency?from=USD&to=EUR&amount=100
func (h *ServiceHandler) Currency(c *gin.Context) {
	from := strings.ToUpper(c.DefaultQuery("from", "USD"))
	to := strings.ToUpper(c.DefaultQuery("to", "EUR"))

	fromRate, okFrom := currencyRates[from]
	toRate, okTo := currencyRates[to]
	if !okFrom || !okTo {
		h.BadRequest(c, "Unsupported currency code")
		return
	}

	amount := 1.0
	if raw := c.Query("amount"); raw != "" {
		parsed, ok := parseAmount(raw)
		if !ok {
			h.BadRequest(c, "Invalid amount")
			return
		}
		amount = parsed
	}

	h.Success(c, gin.H{
		"from":      from,
		"to":        to,
		"amount":    amount,
		"converted": amount / fromRate * toRate,
		"rate":      toRate / fromRate,
	})
}

var randomFacts = []string{
	"Honey never spoils; edible honey has been found in ancient Egyptian tombs.",
	"Octopuses have three hearts and blue blood.",
	"A day on Venus is longer than its year.",
	"Bananas are berries, but strawberries are not.",
	"The Eiffel Tower grows about 15 centimetres taller in summer.",
	"Wombats produce cube-shaped droppings.",
	"There are more possible chess games than atoms in the observable universe.",
	"Hot water can freeze faster than cold water under some conditions.",
}

// RandomFact returns one fact from a fixed pool.
// GET /api/v1/services/random-fact
func (h *ServiceHandler) RandomFact(c *gin.Context) {
	h.Success(c, gin.H{
		"fact": randomFacts[rand.Intn(len(randomFacts))],
	})
}

// IPLookup classifies an IP address. Without an ip parameter it inspects the
// caller's address.
// GET /api/v1/services/ip-lookup?ip=8.8.8.8
func (h *ServiceHandler) IPLookup(c *gin.Context) {
	raw := c.Query("ip")
	if raw == "" {
		raw = c.ClientIP()
	}

	ip := net.ParseIP(raw)
	if ip == nil {
		h.BadRequest(c, "Invalid IP address")
		return
	}

	version := "ipv4"
	if ip.To4() == nil {
		version = "ipv6"
	}

	h.Success(c, gin.H{
		"ip":          ip.String(),
		"version":     version,
		"is_private":  ip.IsPrivate(),
		"is_loopback": ip.IsLoopback(),
	})
}

func parseAmount(raw string) (float64, bool) {
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || amount < 0 {
		return 0, false
	}
	return amount, true
}
