package config

// Server holds the gRPC listener and worker-pool settings for rpcserver.
type Server struct {
	Listen          string `json:"listen" mapstructure:"listen" ini:"listen" yaml:"listen"`
	DataPoolSize    int    `json:"data_pool_size" mapstructure:"data_pool_size" ini:"data_pool_size" yaml:"data_pool_size"`
	BiplanePoolSize int    `json:"biplane_pool_size" mapstructure:"biplane_pool_size" ini:"biplane_pool_size" yaml:"biplane_pool_size"`
}

func (*Server) setDefault() {
	cv.SetDefault("server.listen", "127.0.0.1:9393")
	cv.SetDefault("server.data_pool_size", 64)
	cv.SetDefault("server.biplane_pool_size", 16)
}
