package nordpool

import "time"

const API_URL = "https://dataportal-api.nordpoolgroup.com"

type nordpoolData struct {
	DeliveryDateCET  string      `json:"deliveryDateCET"`
	Market           string      `json:"market"`
	Currency         string      `json:"currency"`
	MultiAreaEntries []areaEntry `json:"multiAreaEntries"`
	AreaStates       []areaState `json:"areaStates"`
	UpdatedAt        *time.Time  `json:"updatedAt"`
}

type areaEntry struct {
	DeliveryStart time.Time          `json:"deliveryStart"`
	DeliveryEnd   time.Time          `json:"deliveryEnd"`
	EntryPerArea  map[string]float64 `json:"entryPerArea"`
}

type areaState struct {
	State string   `json:"state"`
	Areas []string `json:"areas"`
}
