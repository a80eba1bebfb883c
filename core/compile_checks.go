package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CredentialSource = (*LayeredCredentialSource)(nil)
	_ PreferenceStore  = (*MemoryPreferenceStore)(nil)
	_ BundleCodec      = JSONBundleCodec{}
	_ BundleCodec      = RawTokenCodec{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
