package vad

import "testing"

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid v5 defaults",
			cfg:     Config{Model: ModelV5}.withDefaults(),
			wantErr: false,
		},
		{
			name:    "valid v4 defaults",
			cfg:     Config{Model: ModelV4}.withDefaults(),
			wantErr: false,
		},
		{
			name:    "invalid frame samples",
			cfg:     Config{Model: ModelV5, FrameSamples: 333}.withDefaults(),
			wantErr: true,
		},
		{
			name:    "invalid sample rate",
			cfg:     Config{Model: ModelV5, SampleRate: 8000}.withDefaults(),
			wantErr: true,
		},
		{
			name:    "negative below zero",
			cfg:     Config{Model: ModelV5, NegativeSpeechThreshold: -0.1}.withDefaults(),
			wantErr: true,
		},
		{
			name:    "positive above one",
			cfg:     Config{Model: ModelV5, PositiveSpeechThreshold: 1.5}.withDefaults(),
			wantErr: true,
		},
		{
			name:    "negative greater than positive",
			cfg:     Config{Model: ModelV5, PositiveSpeechThreshold: 0.3, NegativeSpeechThreshold: 0.5}.withDefaults(),
			wantErr: true,
		},
		{
			name:    "zero redemption frames",
			cfg:     Config{Model: ModelV5, RedemptionFrames: -1}.withDefaults(),
			wantErr: true,
		},
		{
			name:    "negative pre speech pad",
			cfg:     Config{Model: ModelV5, PreSpeechPadFrames: -1}.withDefaults(),
			wantErr: true,
		},
		{
			name:    "zero min speech frames",
			cfg:     Config{Model: ModelV5, MinSpeechFrames: -1}.withDefaults(),
			wantErr: true,
		},
		{
			name:    "negative end speech pad",
			cfg:     Config{Model: ModelV5, EndSpeechPadFrames: -1}.withDefaults(),
			wantErr: true,
		},
		{
			name:    "negative num frames to emit",
			cfg:     Config{Model: ModelV5, NumFramesToEmit: -1}.withDefaults(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestConfigWithDefaultsModelTuning(t *testing.T) {
	v4 := Config{Model: ModelV4}.withDefaults()
	if v4.FrameSamples != 1536 || v4.RedemptionFrames != 8 || v4.PreSpeechPadFrames != 1 ||
		v4.MinSpeechFrames != 3 || v4.EndSpeechPadFrames != 1 {
		t.Errorf("v4 defaults not applied as spec'd: %+v", v4)
	}

	v5 := Config{Model: ModelV5}.withDefaults()
	if v5.FrameSamples != 512 || v5.RedemptionFrames != 24 || v5.PreSpeechPadFrames != 3 ||
		v5.MinSpeechFrames != 9 || v5.EndSpeechPadFrames != 3 {
		t.Errorf("v5 defaults not applied as spec'd: %+v", v5)
	}
}
