// Package hass surfaces probes to Home Assistant through MQTT discovery.
package hass

import (
  "regexp"
  "strings"

  "github.com/robertof/go-dinuso-exporter/device"
)

const (
  Manufacturer = "DINUSO"
  Model = "BLE Meat Thermometer"

  componentSensor = "sensor"
  componentBinarySensor = "binary_sensor"

  payloadOnline = "online"
  payloadOffline = "offline"
)

// Object ids, also used as unique id suffixes.
const (
  ObjectTemperature = "temperature"
  ObjectTemperatureInt = "temperature_int"
  ObjectBatteryLevel = "battery_level"
  ObjectBatteryBars = "battery_bars"
  ObjectRSSI = "rssi"
  ObjectConnectionQuality = "connection_quality"
  ObjectConnected = "connected"
)

type Availability struct {
  Topic string `json:"t"`
  ValueTemplate string `json:"val_tpl,omitempty"`
}

type EntityDevice struct {
  Identifiers []string `json:"ids"`
  Connections [][2]string `json:"cns,omitempty"`
  Name string `json:"name"`
  Manufacturer string `json:"mf"`
  Model string `json:"mdl"`
}

// EntityConfig is the discovery payload of a single entity, using the abbreviated keys.
type EntityConfig struct {
  Name string `json:"name"`
  UniqueID string `json:"uniq_id"`
  ObjectID string `json:"obj_id"`
  StateTopic string `json:"stat_t"`
  ValueTemplate string `json:"val_tpl"`
  JSONAttributesTopic string `json:"json_attr_t,omitempty"`
  JSONAttributesTemplate string `json:"json_attr_tpl,omitempty"`
  DeviceClass string `json:"dev_cla,omitempty"`
  UnitOfMeasurement string `json:"unit_of_meas,omitempty"`
  StateClass string `json:"stat_cla,omitempty"`
  Icon string `json:"ic,omitempty"`
  SuggestedDisplayPrecision *int `json:"sug_dsp_prc,omitempty"`
  EnabledByDefault *bool `json:"en,omitempty"`
  PayloadOn string `json:"pl_on,omitempty"`
  PayloadOff string `json:"pl_off,omitempty"`
  Availability []Availability `json:"avty"`
  AvailabilityMode string `json:"avty_mode,omitempty"`
  Device EntityDevice `json:"dev"`
}

// Entity is an EntityConfig together with where it must be announced.
type Entity struct {
  Component string
  Object string
  Config EntityConfig
}

type Topics struct {
  Prefix string
  DiscoveryPrefix string
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9_]+`)

// DeviceID returns a stable identifier for the device, usable in topics.
func DeviceID(dev device.Device) string {
  if addr := dev.Addr(); addr != nil {
    return strings.ReplaceAll(addr.String(), ":", "")
  }

  return strings.Trim(nonIDChars.ReplaceAllString(strings.ToLower(dev.Name()), "_"), "_")
}

func (t Topics) Status() string {
  return t.Prefix + "/status"
}

func (t Topics) State(dev device.Device) string {
  return t.Prefix + "/" + DeviceID(dev) + "/state"
}

func (t Topics) Discovery(dev device.Device, e Entity) string {
  return strings.Join([]string{
    t.DiscoveryPrefix,
    e.Component,
    t.Prefix + "_" + DeviceID(dev),
    e.Object,
    "config",
  }, "/")
}

func uniqueIDBase(dev device.Device) string {
  if addr := dev.Addr(); addr != nil {
    return strings.ToUpper(addr.String())
  }

  return DeviceID(dev)
}

func ptr[T any](v T) *T {
  return &v
}

// Entities lists the entities announced for a probe.
func (t Topics) Entities(dev device.Device) []Entity {
  stateTopic := t.State(dev)
  base := uniqueIDBase(dev)

  entityDevice := EntityDevice{
    Identifiers: []string{"dinuso_ble_" + DeviceID(dev)},
    Name: dev.Name(),
    Manufacturer: Manufacturer,
    Model: Model,
  }

  if addr := dev.Addr(); addr != nil {
    entityDevice.Connections = [][2]string{{"mac", addr.String()}}
  }

  bridgeAvailability := Availability{Topic: t.Status()}
  probeAvailability := Availability{
    Topic: stateTopic,
    ValueTemplate: "{{ '" + payloadOnline + "' if value_json.connected else '" + payloadOffline + "' }}",
  }

  sensor := func(object, name, template string) EntityConfig {
    return EntityConfig{
      Name: name,
      UniqueID: base + "_" + object,
      ObjectID: DeviceID(dev) + "_" + object,
      StateTopic: stateTopic,
      ValueTemplate: template,
      Availability: []Availability{bridgeAvailability, probeAvailability},
      AvailabilityMode: "all",
      Device: entityDevice,
    }
  }

  temperature := sensor(ObjectTemperature, "Temperature", "{{ value_json.temperature }}")
  temperature.DeviceClass = "temperature"
  temperature.UnitOfMeasurement = "°C"
  temperature.StateClass = "measurement"
  temperature.SuggestedDisplayPrecision = ptr(1)
  temperature.JSONAttributesTopic = stateTopic
  temperature.JSONAttributesTemplate =
    `{{ {"last_updated": value_json.last_seen, "raw_value": value_json.raw_value} | tojson }}`

  temperatureInt := sensor(ObjectTemperatureInt, "Temperature (Integer)", "{{ value_json.temperature_int }}")
  temperatureInt.DeviceClass = "temperature"
  temperatureInt.UnitOfMeasurement = "°C"
  temperatureInt.StateClass = "measurement"

  batteryLevel := sensor(ObjectBatteryLevel, "Battery Level", "{{ value_json.battery_level }}")
  batteryLevel.DeviceClass = "battery"
  batteryLevel.UnitOfMeasurement = "%"
  batteryLevel.StateClass = "measurement"
  batteryLevel.JSONAttributesTopic = stateTopic
  batteryLevel.JSONAttributesTemplate = `{{ {"battery_bars": value_json.battery_bars} | tojson }}`

  batteryBars := sensor(ObjectBatteryBars, "Battery Bars", "{{ value_json.battery_bars }}")
  batteryBars.Icon = "mdi:battery"
  batteryBars.JSONAttributesTopic = stateTopic
  batteryBars.JSONAttributesTemplate = `{{ {"icon": value_json.battery_icon} | tojson }}`

  rssi := sensor(ObjectRSSI, "Signal Strength", "{{ value_json.rssi }}")
  rssi.DeviceClass = "signal_strength"
  rssi.UnitOfMeasurement = "dBm"
  rssi.StateClass = "measurement"
  rssi.EnabledByDefault = ptr(false)

  quality := sensor(ObjectConnectionQuality, "Connection Quality", "{{ value_json.connection_quality }}")
  quality.Icon = "mdi:signal"
  quality.JSONAttributesTopic = stateTopic
  quality.JSONAttributesTemplate = `{{ {"icon": value_json.quality_icon} | tojson }}`
  // the quality sensor reports "Disconnected" itself.
  quality.Availability = []Availability{bridgeAvailability}
  quality.AvailabilityMode = ""

  connected := EntityConfig{
    Name: "Connected",
    UniqueID: base + "_" + ObjectConnected,
    ObjectID: DeviceID(dev) + "_" + ObjectConnected,
    StateTopic: stateTopic,
    ValueTemplate: "{{ 'ON' if value_json.connected else 'OFF' }}",
    JSONAttributesTopic: stateTopic,
    JSONAttributesTemplate:
      `{{ {"last_seen": value_json.last_seen, "mac_address": value_json.mac_address} | tojson }}`,
    DeviceClass: "connectivity",
    PayloadOn: "ON",
    PayloadOff: "OFF",
    Availability: []Availability{bridgeAvailability},
    Device: entityDevice,
  }

  return []Entity{
    {componentSensor, ObjectTemperature, temperature},
    {componentSensor, ObjectTemperatureInt, temperatureInt},
    {componentSensor, ObjectBatteryLevel, batteryLevel},
    {componentSensor, ObjectBatteryBars, batteryBars},
    {componentSensor, ObjectRSSI, rssi},
    {componentSensor, ObjectConnectionQuality, quality},
    {componentBinarySensor, ObjectConnected, connected},
  }
}
