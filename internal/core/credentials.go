package core

import (
	"fmt"
	"os"

	"github.com/RecoveryAshes/LmsArchive/internal/models"
	"github.com/RecoveryAshes/LmsArchive/internal/utils"
)

// LoadCredentials 从环境变量加载门户登录凭据
// 凭据只接受环境变量传入,不支持配置文件和命令行参数,
// 避免密码落入shell历史或被提交进版本库
func LoadCredentials() (models.Credentials, error) {
	creds := models.Credentials{
		Username: os.Getenv(models.EnvUsername),
		Password: os.Getenv(models.EnvPassword),
	}

	if err := creds.Validate(); err != nil {
		return models.Credentials{}, fmt.Errorf("加载登录凭据失败: %w", err)
	}

	utils.Debugf("已从环境变量加载登录凭据 (用户: %s)", creds.Redacted())
	return creds, nil
}
