package gpu

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "gpu")

// Info holds detected GPU information
type Info struct {
	Device    string `json:"device"`     // e.g. "Intel Arc A380"
	VRAMTotal int64  `json:"vram_total"` // bytes, 0 if unknown
	VRAMFree  int64  `json:"vram_free"`  // bytes, 0 if unknown
	Driver    string `json:"driver"`     // e.g. "i915"
}

var (
	cached     *Info
	detectOnce sync.Once
)

// Detect probes sysfs once for a discrete GPU with VRAM counters. Speech
// servers on the same card share this memory with the encoder.
func Detect() *Info {
	detectOnce.Do(func() {
		cached = detect("/sys/class/drm")
		logger.WithFields(logrus.Fields{
			"device":  cached.Device,
			"vram_mb": cached.VRAMTotal / 1024 / 1024,
			"driver":  cached.Driver,
		}).Info("gpu detected")
	})
	return cached
}

// Refresh re-reads the free VRAM of the detected card.
func Refresh() *Info {
	info := *Detect()
	if info.Device == "" {
		return &info
	}
	if card := findCard("/sys/class/drm"); card != "" {
		if used, err := readSysfsInt(filepath.Join(card, "device", "mem_info_vram_used")); err == nil {
			info.VRAMFree = info.VRAMTotal - used
		}
	}
	return &info
}

func detect(drmRoot string) *Info {
	info := &Info{}
	card := findCard(drmRoot)
	if card == "" {
		return info
	}
	deviceDir := filepath.Join(card, "device")

	info.VRAMTotal, _ = readSysfsInt(filepath.Join(deviceDir, "mem_info_vram_total"))
	if used, err := readSysfsInt(filepath.Join(deviceDir, "mem_info_vram_used")); err == nil && used > 0 {
		info.VRAMFree = info.VRAMTotal - used
	}
	info.Device = readDeviceName(deviceDir)
	if link, err := os.Readlink(filepath.Join(deviceDir, "driver")); err == nil {
		info.Driver = filepath.Base(link)
	}
	return info
}

// findCard returns the first cardN directory that reports VRAM. Connector
// entries such as card0-HDMI-A-1 are skipped.
func findCard(drmRoot string) string {
	cards, err := filepath.Glob(filepath.Join(drmRoot, "card[0-9]*"))
	if err != nil {
		return ""
	}
	for _, card := range cards {
		if strings.Contains(filepath.Base(card), "-") {
			continue
		}
		vram, err := readSysfsInt(filepath.Join(card, "device", "mem_info_vram_total"))
		if err == nil && vram > 0 {
			return card
		}
	}
	return ""
}

func readSysfsInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

// Known Intel Arc device IDs
var intelNames = map[string]string{
	"56a5": "Intel Arc A380",
	"56a6": "Intel Arc A310",
	"5690": "Intel Arc A770",
	"5691": "Intel Arc A730M",
	"5692": "Intel Arc A750",
	"56a0": "Intel Arc A770M",
	"56a1": "Intel Arc A730M",
	"56c0": "Intel Arc B580",
	"56c1": "Intel Arc B570",
}

func readDeviceName(deviceDir string) string {
	data, err := os.ReadFile(filepath.Join(deviceDir, "uevent"))
	if err != nil {
		return "Unknown GPU"
	}

	var vendorID, deviceID string
	for _, line := range strings.Split(string(data), "\n") {
		if id, ok := strings.CutPrefix(line, "PCI_ID="); ok {
			if v, d, ok := strings.Cut(id, ":"); ok {
				vendorID, deviceID = strings.ToLower(v), strings.ToLower(d)
			}
		}
	}

	if vendorID == "8086" {
		if name, ok := intelNames[deviceID]; ok {
			return name
		}
		return "Intel GPU (" + deviceID + ")"
	}
	return "GPU (" + vendorID + ":" + deviceID + ")"
}
