// Package influxdb records SchoolHub activity as time series.
//
// It wraps the influxdb-client-go v2 non-blocking write API. The EventSink
// turns bus events into points:
//
//	auth_events     tags role, outcome            field count
//	grades          tags subject, action          field value
//	account_events  tags role, type               field count
//
// Writes are batched per influxdb.batch_size and influxdb.flush_interval.
// Asynchronous write failures go to the callback set with SetOnError.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	bus.Subscribe("influxdb", influxdb.NewEventSink(client))
package influxdb
