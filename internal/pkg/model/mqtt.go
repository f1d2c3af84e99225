package model

type RegisterDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

type RegisterMessage struct {
	Tilda               string         `json:"~"`
	Name                string         `json:"name"`
	ID                  string         `json:"unique_id"`
	StateTopic          string         `json:"state_topic"`
	ValueTemplate       string         `json:"value_template"`
	DeviceClass         string         `json:"device_class,omitempty"`
	UnitOfMeasurement   string         `json:"unit_of_measurement,omitempty"`
	JSONAttributesTopic string         `json:"json_attributes_topic,omitempty"`
	Device              RegisterDevice `json:"device"`
}

// ConfigChange is the payload of a configuration PropertiesChanged notification.
type ConfigChange struct {
	Path      string         `json:"path"`
	Interface string         `json:"interface"`
	Changed   map[string]any `json:"changed,omitempty"`
}
