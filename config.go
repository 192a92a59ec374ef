package main

import (
  "bytes"
  "errors"
  "flag"
  "fmt"
  "io"
  "os"
  "time"

  "github.com/robertof/go-dinuso-exporter/collector"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/robertof/go-dinuso-exporter/device/dinuso"
  "github.com/robertof/go-dinuso-exporter/hass"
  "gopkg.in/yaml.v3"
)

type config struct {
  Debug, Trace bool
  ConfigFile string
  BindAddress string
  EnableMetamonitoring bool
  DiscoverDevices bool
  DiscoveryDuration time.Duration
  Once bool
  BluetoothDeviceId int
  ActiveScan bool
  DeviceTimeout time.Duration
  MaxRetries int
  InitialCollectionTimeout, CollectionTimeout time.Duration
  Backoff time.Duration
  MQTT hass.Config
  Devices []device.Device
}

// fileConfig is the YAML configuration file. Flags set on the command line take precedence.
type fileConfig struct {
  Bind *string `yaml:"bind"`
  BluetoothDevice *int `yaml:"bluetooth-device"`
  ActiveScan *bool `yaml:"active-scan"`
  DeviceTimeout *time.Duration `yaml:"device-timeout"`
  Metamonitoring *bool `yaml:"metamonitoring"`
  MQTT hass.Config `yaml:"mqtt"`
  Devices []fileDevice `yaml:"devices"`
}

type fileDevice struct {
  Type string `yaml:"type"`
  Name string `yaml:"name"`
  Addr string `yaml:"addr"`
}

type boundDeviceList struct {
  device.Factory
  name string
  list *[]device.Device
}

var deviceFactories = map[string]device.Factory {
  "dinuso": &dinuso.Factory{},
}

func (d *boundDeviceList) String() string {
  return ""
}

func (d *boundDeviceList) Set(v string) error {
  ds := device.NewDeviceSpec(v)

  device, err := d.FromSpec(ds)
  if err != nil {
    return fmt.Errorf("failed to create device: %w", err)
  }

  *d.list = append(*d.list, device)

  return nil
}

func loadConfigFile(path string) (fc fileConfig, err error) {
  data, err := os.ReadFile(path)
  if err != nil {
    return fc, fmt.Errorf("failed to read config file: %w", err)
  }

  dec := yaml.NewDecoder(bytes.NewReader(data))
  dec.KnownFields(true)

  // an empty file is a valid (empty) configuration.
  if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
    return fc, fmt.Errorf("failed to parse config file %q: %w", path, err)
  }

  return fc, nil
}

func (fd fileDevice) toDevice() (device.Device, error) {
  kind := fd.Type
  if kind == "" {
    kind = "dinuso"
  }

  factory, ok := deviceFactories[kind]
  if !ok {
    return nil, fmt.Errorf("unknown device type %q", kind)
  }

  return factory.FromSpec(device.DeviceSpec{
    device.DeviceSpecFieldName: fd.Name,
    device.DeviceSpecFieldAddress: fd.Addr,
  })
}

// applyFile fills every setting not explicitly set by a flag from the config file.
func (cfg *config) applyFile(fc fileConfig, setFlags map[string]bool) error {
  setString := func(flagName string, dst *string, v string) {
    if v != "" && !setFlags[flagName] {
      *dst = v
    }
  }

  if fc.Bind != nil && !setFlags["bind"] {
    cfg.BindAddress = *fc.Bind
  }

  if fc.BluetoothDevice != nil && !setFlags["bluetooth-device"] {
    cfg.BluetoothDeviceId = *fc.BluetoothDevice
  }

  if fc.ActiveScan != nil && !setFlags["active-scan"] {
    cfg.ActiveScan = *fc.ActiveScan
  }

  if fc.DeviceTimeout != nil && !setFlags["device-timeout"] {
    cfg.DeviceTimeout = *fc.DeviceTimeout
  }

  if fc.Metamonitoring != nil && !setFlags["metamonitoring"] {
    cfg.EnableMetamonitoring = *fc.Metamonitoring
  }

  setString("mqtt-url", &cfg.MQTT.URL, fc.MQTT.URL)
  setString("mqtt-client-id", &cfg.MQTT.ClientID, fc.MQTT.ClientID)
  setString("mqtt-username", &cfg.MQTT.Username, fc.MQTT.Username)
  setString("mqtt-password", &cfg.MQTT.Password, fc.MQTT.Password)
  setString("mqtt-prefix", &cfg.MQTT.Prefix, fc.MQTT.Prefix)
  setString("mqtt-discovery-prefix", &cfg.MQTT.DiscoveryPrefix, fc.MQTT.DiscoveryPrefix)

  if fc.MQTT.PublishInterval > 0 && !setFlags["publish-interval"] {
    cfg.MQTT.PublishInterval = fc.MQTT.PublishInterval
  }

  var fileDevices []device.Device

  for i, fd := range fc.Devices {
    dev, err := fd.toDevice()
    if err != nil {
      return fmt.Errorf("device #%d in config file: %w", i + 1, err)
    }

    fileDevices = append(fileDevices, dev)
  }

  cfg.Devices = append(fileDevices, cfg.Devices...)

  return nil
}

func validateDevices(devices []device.Device) error {
  seenAddrs := make(map[string]bool)
  seenNames := make(map[string]bool)
  anyAddr := 0

  for _, dev := range devices {
    if seenNames[dev.Name()] {
      return fmt.Errorf("device name %q is configured more than once", dev.Name())
    }

    seenNames[dev.Name()] = true

    if device.MatchesAnyAddress(dev) {
      anyAddr += 1
      continue
    }

    addr := dev.Addr().String()

    if seenAddrs[addr] {
      return fmt.Errorf("device %q is configured more than once", addr)
    }

    seenAddrs[addr] = true
  }

  if anyAddr > 1 {
    return errors.New("at most one device without addr can be configured")
  }

  return nil
}

func parseArgs(fs *flag.FlagSet, args []string) (cfg config, err error) {
  fs.StringVar(&cfg.ConfigFile, "config", "", "Path to a YAML configuration file")
  fs.StringVar(&cfg.BindAddress,"bind", "localhost:9103", "Where the exporter will bind to")
  fs.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID")
  fs.BoolVar(&cfg.ActiveScan, "active-scan", false, "Use active rather than passive BLE scans")
  fs.BoolVar(&cfg.DiscoverDevices, "discover", false, "Discover nearby DINUSO probes and quit")
  fs.DurationVar(&cfg.DiscoveryDuration, "discover-duration", 10 * time.Second,
    "How long to scan for when discovering probes")
  fs.BoolVar(&cfg.Once, "once", false, "Collect a single reading from every device, print it and quit")
  fs.BoolVar(&cfg.EnableMetamonitoring, "metamonitoring", true, "Enable metamonitoring metrics")
  fs.DurationVar(&cfg.DeviceTimeout, "device-timeout", collector.DefaultDeviceTimeout,
    "Time after which a silent probe is reported as disconnected")
  fs.IntVar(&cfg.MaxRetries, "max-retries", collector.DefaultMaxRetries,
    "Max number of retries for one-shot and initial collections")
  fs.DurationVar(&cfg.InitialCollectionTimeout, "initial-timeout", 0,
    "Wait up to this long (per retry attempt) for a first reading on start. 0 disables it")
  fs.DurationVar(&cfg.CollectionTimeout, "timeout", collector.DefaultTimeoutPerAttempt,
    "Timeout for one-shot collections (per retry attempt)")
  fs.DurationVar(&cfg.Backoff, "backoff", collector.DefaultBackoffFactor,
    "Exponential backoff factor for retries and scan restarts")
  fs.StringVar(&cfg.MQTT.URL, "mqtt-url", "", "MQTT broker to announce probes to Home Assistant on, e.g. tcp://localhost:1883")
  fs.StringVar(&cfg.MQTT.ClientID, "mqtt-client-id", "", "MQTT client ID. Defaults to dinuso_ble-<prefix>")
  fs.StringVar(&cfg.MQTT.Username, "mqtt-username", "", "MQTT username")
  fs.StringVar(&cfg.MQTT.Password, "mqtt-password", "", "MQTT password")
  fs.StringVar(&cfg.MQTT.Prefix, "mqtt-prefix", hass.DefaultPrefix, "MQTT topic prefix for states")
  fs.StringVar(&cfg.MQTT.DiscoveryPrefix, "mqtt-discovery-prefix", hass.DefaultDiscoveryPrefix,
    "Home Assistant MQTT discovery prefix")
  fs.DurationVar(&cfg.MQTT.PublishInterval, "publish-interval", hass.DefaultPublishInterval,
    "How frequently states are republished to MQTT")
  fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
  fs.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")

  for deviceName, deviceFactory := range deviceFactories {
    boundList := boundDeviceList{
      name:    deviceName,
      Factory: deviceFactory,
      list:    &cfg.Devices,
    }

    help := "Device spec for this device in the form of `key=value,key=value`."

    if docs, ok := deviceFactory.(device.FactoryDocs); ok {
      help += "\n" + docs.Help()
    }

    fs.Var(&boundList, deviceName, help)
  }

  if err := fs.Parse(args); err != nil {
    return cfg, err
  }

  if cfg.ConfigFile != "" {
    setFlags := make(map[string]bool)
    fs.Visit(func(f *flag.Flag) {
      setFlags[f.Name] = true
    })

    fc, err := loadConfigFile(cfg.ConfigFile)
    if err != nil {
      return cfg, err
    }

    if err := cfg.applyFile(fc, setFlags); err != nil {
      return cfg, err
    }
  }

  if !cfg.DiscoverDevices && len(cfg.Devices) == 0 {
    return cfg, errors.New("at least one device is required")
  }

  if err := validateDevices(cfg.Devices); err != nil {
    return cfg, err
  }

  return cfg, nil
}

func ParseArgs() config {
  cfg, err := parseArgs(flag.CommandLine, os.Args[1:])

  if err != nil {
    fmt.Fprintf(os.Stderr, "Error: %v\n", err)
    flag.Usage()
    os.Exit(1)
  }

  return cfg
}
