// Package factory provides a small generic registry used to instantiate
// pluggable modules, such as metrics sinks, from configuration. Modules are
// defined by a type string and a map of raw settings.
//
// Example usage:
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	reg.Register("influx", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c InfluxConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewInfluxSink(c), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "influx", Conf: raw})
package factory
