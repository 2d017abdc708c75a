//go:build !windows

package encoder

// No vendor probe on this platform yet. VAAPI/V4L2 discovery would slot
// in here the way the DXGI probe does on windows.
func detectHardwareBackends(m *Manager) {}
