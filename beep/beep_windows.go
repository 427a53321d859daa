//go:build windows

package beep

// No audio playback on Windows.

func Init()        {}
func PlayShutter() {}
func PlayDone()    {}
func PlayError()   {}
