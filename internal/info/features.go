package info

// FeatureSet lists the optional behaviour compiled in.
type FeatureSet struct {
	Default bool `json:"default"`
	// FullFeatures is set when every optional feature is enabled.
	FullFeatures bool `json:"fullFeatures"`
	// Debug is set by the debug build tag: relay defects panic with stacks.
	Debug bool `json:"debug"`
	// UnlimitedThreads is set by the relayframe_unlimited_threads build tag:
	// pools may exceed runtime.NumCPU() workers.
	UnlimitedThreads bool `json:"unlimitedThreads"`
}

func Features() FeatureSet {
	return FeatureSet{
		Default:          true,
		FullFeatures:     debugBuild && unlimitedThreads,
		Debug:            debugBuild,
		UnlimitedThreads: unlimitedThreads,
	}
}

// Names returns the enabled features, in a stable order.
func (f FeatureSet) Names() []string {
	var names []string
	if f.Default {
		names = append(names, "default")
	}
	if f.FullFeatures {
		names = append(names, "full_features")
	}
	if f.Debug {
		names = append(names, "debug")
	}
	if f.UnlimitedThreads {
		names = append(names, "unlimited_threads")
	}
	return names
}
