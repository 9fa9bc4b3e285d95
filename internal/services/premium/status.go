package premium

import (
	"context"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/cache"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/utils"
	"github.com/3Eeeecho/go-dropburn/internal/repositories"
	"go.uber.org/zap"
)

// 状态来源，回显给前端便于排查
const (
	SourceToken    = "token"
	SourceDatabase = "database"
	SourceMirror   = "cache"
)

// Status premium 状态视图，与客户端本地缓存的形状一致
type Status struct {
	IsPremium bool       `json:"isPremium"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Source    string     `json:"source,omitempty"`
}

// mirrorEntry redis 镜像里的条目
type mirrorEntry struct {
	IsPremium bool      `json:"isPremium"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service premium 权益状态服务
//
// 两级结构：数据库是权威层，redis 镜像是回退层。
// 读取规则：数据库可达时以它为准并顺带覆盖镜像（server wins）；
// 数据库不可达时信任镜像——可用性优先于一致性的取舍。
type Service interface {
	// StatusFromToken 校验 premium_token，签名无效或已过期都返回非 premium（不是错误）
	StatusFromToken(tokenString string) *Status
	// StatusFromWallet 按钱包地址查询权益，内部执行镜像调谐
	StatusFromWallet(ctx context.Context, walletAddress string) *Status
	// WriteMirror 激活成功后写入镜像
	WriteMirror(ctx context.Context, walletAddress string, expiresAt time.Time)
	// ClearMirror 清除镜像条目
	ClearMirror(ctx context.Context, walletAddress string)
}

type statusService struct {
	premiumRepo repositories.PremiumUserRepository
	mirror      cache.Cache
	cfg         *config.Config
	now         func() time.Time
}

// NewService 创建权益状态服务实例
func NewService(premiumRepo repositories.PremiumUserRepository, mirror cache.Cache, cfg *config.Config) Service {
	return &statusService{
		premiumRepo: premiumRepo,
		mirror:      mirror,
		cfg:         cfg,
		now:         time.Now,
	}
}

func mirrorKey(walletAddress string) string {
	return fmt.Sprintf("premium:wallet:%s", walletAddress)
}

func (s *statusService) StatusFromToken(tokenString string) *Status {
	claims, err := utils.ParsePremiumToken(tokenString, s.cfg.JWT.SecretKey)
	if err != nil {
		// 过期或无效的 token 都只是"非 premium"，不向上抛错
		logger.Debug("premium token 校验未通过", zap.Error(err))
		return &Status{IsPremium: false}
	}

	until := time.Unix(claims.PremiumUntil, 0)
	if !until.After(s.now()) {
		return &Status{IsPremium: false}
	}
	return &Status{IsPremium: true, ExpiresAt: &until, Source: SourceToken}
}

func (s *statusService) StatusFromWallet(ctx context.Context, walletAddress string) *Status {
	user, err := s.premiumRepo.FindActiveByWallet(walletAddress, s.now())
	if err != nil {
		// 权威层不可达，咨询镜像
		logger.Warn("查询 premium 数据库失败，回退到镜像缓存",
			zap.String("wallet", walletAddress), zap.Error(err))
		return s.statusFromMirror(ctx, walletAddress)
	}

	if user == nil {
		// 权威层说没有权益，覆盖掉可能残留的镜像条目
		s.ClearMirror(ctx, walletAddress)
		return &Status{IsPremium: false}
	}

	// server wins: 每次权威读取成功都刷新镜像
	s.WriteMirror(ctx, walletAddress, user.ExpiresAt)
	return &Status{IsPremium: true, ExpiresAt: &user.ExpiresAt, Source: SourceDatabase}
}

func (s *statusService) statusFromMirror(ctx context.Context, walletAddress string) *Status {
	var entry mirrorEntry
	if err := s.mirror.Get(ctx, mirrorKey(walletAddress), &entry); err != nil {
		return &Status{IsPremium: false}
	}
	if !entry.IsPremium || !entry.ExpiresAt.After(s.now()) {
		return &Status{IsPremium: false}
	}
	return &Status{IsPremium: true, ExpiresAt: &entry.ExpiresAt, Source: SourceMirror}
}

func (s *statusService) WriteMirror(ctx context.Context, walletAddress string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	entry := mirrorEntry{IsPremium: true, ExpiresAt: expiresAt}
	if err := s.mirror.Set(ctx, mirrorKey(walletAddress), entry, ttl); err != nil {
		// 镜像只是回退层，写失败不影响主流程
		logger.Warn("写入 premium 镜像失败", zap.String("wallet", walletAddress), zap.Error(err))
	}
}

func (s *statusService) ClearMirror(ctx context.Context, walletAddress string) {
	if err := s.mirror.Del(ctx, mirrorKey(walletAddress)); err != nil {
		logger.Warn("清除 premium 镜像失败", zap.String("wallet", walletAddress), zap.Error(err))
	}
}
