package main

import (
	"testing"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/spf13/viper"
	"github.com/zeebo/assert"
)

func TestRouterURLs(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("router_urls", []string{"https://a.example.com, https://b.example.com", " ", "https://c.example.com"})
	assert.DeepEqual(t, routerURLs(), []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"})
}

func TestOverrideFlags(t *testing.T) {
	t.Cleanup(func() {
		routeFromChain, routeAmount = "", ""
	})

	values := models.FormValues{SrcChainID: "interwoven-1", SrcDenom: "uinit", Quantity: "1"}
	routeFromChain = "echelon-1"
	routeAmount = "2.5"
	overrideFlags(&values)

	assert.Equal(t, values.SrcChainID, "echelon-1")
	assert.Equal(t, values.SrcDenom, "uinit")
	assert.Equal(t, values.Quantity, "2.5")
}
