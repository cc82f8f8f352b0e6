package publish

import (
	"time"

	"github.com/muurk/tigerscale/internal/state"
)

// StatePayload is the JSON form of the client state, shared by MQTT and
// `show --format json`. Unknown values are omitted.
type StatePayload struct {
	Weight            *float64  `json:"weight,omitempty"`
	TagID             *string   `json:"tag,omitempty"`
	TagIDHex          string    `json:"tagHex,omitempty"`
	CalibrationFactor *float64  `json:"calibrationFactor,omitempty"`
	APIKeyStatus      string    `json:"apiKeyStatus"`
	DisplayName       string    `json:"displayName,omitempty"`
	Cloud             string    `json:"cloud"`
	UptimeSeconds     *float64  `json:"uptimeSeconds,omitempty"`
	Uptime            string    `json:"uptime"`
	CloudPush         string    `json:"cloudPush"`
	CloudPushSeconds  int       `json:"cloudPushSeconds,omitempty"`
	WiFi              string    `json:"wifi,omitempty"`
	IP                string    `json:"ip,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// NewStatePayload converts a state snapshot. The API key itself is never
// included.
func NewStatePayload(st state.ClientState) StatePayload {
	p := StatePayload{
		TagIDHex:         st.TagIDHex,
		APIKeyStatus:     st.APIKeyStatus.String(),
		DisplayName:      st.DisplayName,
		Cloud:            st.CloudStatus.String(),
		Uptime:           state.UptimePlaceholder,
		CloudPush:        st.CloudPush.Phase.String(),
		CloudPushSeconds: st.CloudPush.Seconds,
		WiFi:             st.WiFi,
		IP:               st.IP,
		UpdatedAt:        st.UpdatedAt,
	}
	if st.WeightKnown {
		w := st.Weight
		p.Weight = &w
	}
	if st.TagKnown {
		tag := st.TagID
		p.TagID = &tag
	}
	if st.FactorKnown {
		f := st.CalibrationFactor
		p.CalibrationFactor = &f
	}
	if st.UptimeKnown {
		u := st.UptimeSeconds
		p.UptimeSeconds = &u
		p.Uptime = state.FormatUptime(u)
	}
	return p
}
