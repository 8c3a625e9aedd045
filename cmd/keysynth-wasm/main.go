//go:build js && wasm

package main

import (
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/keysynth/control"
	"github.com/cwbudde/keysynth/preset"
	"github.com/cwbudde/keysynth/synth"
)

const maxBlockFrames = 128

var (
	globalEngine *synth.Engine
	renderBuffer []int16
	outputBuffer []float32
)

func main() {
	// Keep program running
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmSetKeyBitmap", js.FuncOf(wasmSetKeyBitmap))
	js.Global().Set("wasmSetWaveform", js.FuncOf(wasmSetWaveform))
	js.Global().Set("wasmSetGain", js.FuncOf(wasmSetGain))
	js.Global().Set("wasmSetOsc2Enabled", js.FuncOf(wasmSetOsc2Enabled))
	js.Global().Set("wasmSetADSR", js.FuncOf(wasmSetADSR))
	js.Global().Set("wasmSetScale", js.FuncOf(wasmSetScale))
	js.Global().Set("wasmSetCustomNotes", js.FuncOf(wasmSetCustomNotes))
	js.Global().Set("wasmLoadPreset", js.FuncOf(wasmLoadPreset))
	js.Global().Set("wasmStatus", js.FuncOf(wasmStatus))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM keysynth module loaded")
	<-c
}

func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	sampleRate := args[0].Int()
	globalEngine = synth.NewEngine(sampleRate, maxBlockFrames, nil)
	renderBuffer = make([]int16, maxBlockFrames*2)
	outputBuffer = make([]float32, maxBlockFrames*2)

	println("Synth initialized at", sampleRate, "Hz")
	return nil
}

func wasmSetKeyBitmap(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return nil
	}
	globalEngine.SetKeyBitmap(uint16(args[0].Int()))
	return nil
}

func wasmSetWaveform(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return nil
	}
	globalEngine.SetWaveform(args[0].Int(), synth.Waveform(args[1].Int()))
	return nil
}

func wasmSetGain(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return nil
	}
	globalEngine.SetGain(args[0].Int(), args[1].Float())
	return nil
}

func wasmSetOsc2Enabled(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return nil
	}
	globalEngine.SetOsc2Enabled(args[0].Bool())
	return nil
}

func wasmSetADSR(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 || globalEngine == nil {
		return nil
	}
	globalEngine.SetADSR(args[0].Float(), args[1].Float(), args[2].Float(), args[3].Float())
	return nil
}

func wasmSetScale(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return nil
	}
	globalEngine.SetScale(args[0].Int(), synth.ScaleKind(args[1].Int()))
	return nil
}

func wasmSetCustomNotes(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return nil
	}
	globalEngine.SetCustomNotes(control.ParseCustomNotes(args[0].String()))
	return nil
}

func wasmLoadPreset(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return nil
	}
	cfg, err := preset.Parse([]byte(args[0].String()))
	if err != nil {
		println("Failed to load preset:", err.Error())
		return err.Error()
	}
	globalEngine.SetConfig(cfg)
	return nil
}

func wasmStatus(this js.Value, args []js.Value) interface{} {
	if globalEngine == nil {
		return nil
	}
	return control.StatusJSON(globalEngine.Status())
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return 0
	}

	numFrames := args[0].Int()
	if numFrames > maxBlockFrames {
		numFrames = maxBlockFrames
	}
	if numFrames < 1 {
		return 0
	}

	block := renderBuffer[:numFrames*2]
	globalEngine.Render(block)
	for i, s := range block {
		outputBuffer[i] = float32(s) / 32768
	}

	// Return pointer to buffer in WASM linear memory
	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
