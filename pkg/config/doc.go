// Package config provides configuration loading for pqflow.
//
// A single Config structure covers every concern of the tool:
//
//   - Pipeline: row group size, queue capacity and close timeout
//   - Writer: Parquet compression, page size and statistics
//   - Reader: batch size, projection and row limit
//   - Storage: the S3 and GCS backends behind the s3: and gs: prefixes
//   - Logging and Observability: zap, Prometheus and OpenTelemetry settings
//
// # Usage
//
//	cfg, err := config.Load("pqflow.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	resolver := sink.NewResolver(cfg.SinkOptions()...)
//
// Fields missing from the file keep their Default values.
//
// # Environment Variable Substitution
//
//	# pqflow.yaml
//	storage:
//	  s3:
//	    enabled: true
//	    region: ${AWS_REGION}
//	    access_key_id: ${AWS_ACCESS_KEY_ID}
//	    secret_access_key: ${AWS_SECRET_ACCESS_KEY}
//
// Unset variables are replaced with the empty string.
package config
